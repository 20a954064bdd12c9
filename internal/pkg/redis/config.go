package redis

import (
	"errors"
	"time"
)

// DeployMode Redis 部署模式
type DeployMode string

const (
	ModeSingle   DeployMode = "single"   // 单机模式
	ModeSentinel DeployMode = "sentinel" // 哨兵模式
	ModeCluster  DeployMode = "cluster"  // 集群模式
)

// Config Redis 配置
type Config struct {
	Enabled bool       `mapstructure:"enabled"`
	Mode    DeployMode `mapstructure:"mode"`

	Addr          string   `mapstructure:"addr"`           // 单机地址 (host:port)
	SentinelAddrs []string `mapstructure:"sentinel_addrs"` // 哨兵地址列表
	MasterName    string   `mapstructure:"master_name"`    // 哨兵主节点名称
	ClusterAddrs  []string `mapstructure:"cluster_addrs"`  // 集群节点地址列表

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Enabled:      false,
		Mode:         ModeSingle,
		Addr:         "localhost:6379",
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSingle:
		if c.Addr == "" {
			return errors.New("redis: addr is required in single mode")
		}
	case ModeSentinel:
		if len(c.SentinelAddrs) == 0 || c.MasterName == "" {
			return errors.New("redis: sentinel_addrs and master_name are required in sentinel mode")
		}
	case ModeCluster:
		if len(c.ClusterAddrs) == 0 {
			return errors.New("redis: cluster_addrs is required in cluster mode")
		}
	default:
		return errors.New("redis: mode must be single, sentinel or cluster")
	}
	if c.DB < 0 || c.DB > 15 {
		return errors.New("redis: db must be between 0 and 15")
	}
	if c.Mode == ModeCluster && c.DB != 0 {
		return errors.New("redis: cluster mode only supports db 0")
	}
	return nil
}
