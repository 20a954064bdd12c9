package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/redis"
	"github.com/reefs-ai/reefs-backend/internal/pkg/workerpool"
)

// EnvPrefix prefixes environment overrides, e.g. REEFS_OPENAI_API_KEY.
const EnvPrefix = "REEFS"

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   database.Config   `mapstructure:"database"`
	Redis      redis.Config      `mapstructure:"redis"`
	Log        logger.Config     `mapstructure:"log"`
	WorkerPool workerpool.Config `mapstructure:"workerpool"`
	Auth       AuthConfig        `mapstructure:"auth"`
	OpenAI     OpenAIConfig      `mapstructure:"openai"`
	Factory    FactoryConfig     `mapstructure:"factory"`
	Trace      TraceConfig       `mapstructure:"trace"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	JWTIssuer       string        `mapstructure:"jwt_issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	Google          GoogleConfig  `mapstructure:"google"`
}

type GoogleConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url"`
	StateTTL     time.Duration `mapstructure:"state_ttl"`
}

// Enabled reports whether Google sign-in is configured
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	Model              string `mapstructure:"model"`
	MaxOutputTokens    int    `mapstructure:"max_output_tokens"`
	MaxSteps           int    `mapstructure:"max_steps"`
	HistoryTokenBudget int    `mapstructure:"history_token_budget"`
}

type FactoryConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Token        string        `mapstructure:"token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	WorkflowName string        `mapstructure:"workflow_name"`
	DeployType   string        `mapstructure:"deploy_type"`
	DefaultModel string        `mapstructure:"default_model"`
}

type TraceConfig struct {
	SnapshotLimit int           `mapstructure:"snapshot_limit"`
	Heartbeat     time.Duration `mapstructure:"heartbeat"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	db := database.DefaultConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.host", db.Host)
	v.SetDefault("database.port", db.Port)
	v.SetDefault("database.user", db.User)
	v.SetDefault("database.password", db.Password)
	v.SetDefault("database.dbname", db.DBName)
	v.SetDefault("database.sslmode", db.SSLMode)
	v.SetDefault("database.timezone", db.Timezone)
	v.SetDefault("database.path", db.Path)
	v.SetDefault("database.maxidleconns", db.MaxIdleConns)
	v.SetDefault("database.maxopenconns", db.MaxOpenConns)
	v.SetDefault("database.connmaxlifetime", db.ConnMaxLifetime)
	v.SetDefault("database.connmaxidletime", db.ConnMaxIdleTime)
	v.SetDefault("database.loglevel", db.LogLevel)
	v.SetDefault("database.slowthreshold", db.SlowThreshold)
	v.SetDefault("database.preparestmt", db.PrepareStmt)
	v.SetDefault("database.automigrate", db.AutoMigrate)

	rc := redis.DefaultConfig()
	v.SetDefault("redis.enabled", rc.Enabled)
	v.SetDefault("redis.mode", string(rc.Mode))
	v.SetDefault("redis.addr", rc.Addr)
	v.SetDefault("redis.pool_size", rc.PoolSize)
	v.SetDefault("redis.min_idle_conns", rc.MinIdleConns)
	v.SetDefault("redis.dial_timeout", rc.DialTimeout)
	v.SetDefault("redis.read_timeout", rc.ReadTimeout)
	v.SetDefault("redis.write_timeout", rc.WriteTimeout)

	lc := logger.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.output", lc.Output)
	v.SetDefault("log.enablecaller", lc.EnableCaller)
	v.SetDefault("log.enablestacktrace", lc.EnableStacktrace)
	v.SetDefault("log.file.filename", lc.File.Filename)
	v.SetDefault("log.file.maxsize", lc.File.MaxSize)
	v.SetDefault("log.file.maxage", lc.File.MaxAge)
	v.SetDefault("log.file.maxbackups", lc.File.MaxBackups)
	v.SetDefault("log.file.compress", lc.File.Compress)

	wp := workerpool.DefaultConfig()
	v.SetDefault("workerpool.size", wp.Size)
	v.SetDefault("workerpool.expiry_duration", wp.ExpiryDuration)
	v.SetDefault("workerpool.release_timeout", wp.ReleaseTimeout)

	// keys without a default must still be registered for env overrides to unmarshal
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.google.client_id", "")
	v.SetDefault("auth.google.client_secret", "")
	v.SetDefault("auth.google.redirect_url", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("factory.token", "")
	v.SetDefault("redis.password", "")

	v.SetDefault("auth.jwt_issuer", "reefs")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 14*24*time.Hour)
	v.SetDefault("auth.google.state_ttl", 10*time.Minute)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-5-nano")
	v.SetDefault("openai.max_output_tokens", 4000)
	v.SetDefault("openai.max_steps", 5)
	v.SetDefault("openai.history_token_budget", 48000)

	v.SetDefault("factory.base_url", "http://localhost:8000")
	v.SetDefault("factory.timeout", 30*time.Second)
	v.SetDefault("factory.workflow_name", "test_workflow")
	v.SetDefault("factory.deploy_type", "local")
	v.SetDefault("factory.default_model", "gpt-4o-mini")

	v.SetDefault("trace.snapshot_limit", 100)
	v.SetDefault("trace.heartbeat", 25*time.Second)
}

// LoadConfig reads the YAML file at path (optional when empty) and applies
// REEFS_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks cross-section requirements. Section configs validate
// themselves when their component is constructed.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes")
	}
	if c.OpenAI.MaxSteps <= 0 {
		return errors.New("openai.max_steps must be positive")
	}
	if c.Trace.SnapshotLimit <= 0 {
		return errors.New("trace.snapshot_limit must be positive")
	}
	if c.Factory.BaseURL == "" {
		return errors.New("factory.base_url is required")
	}
	return nil
}
