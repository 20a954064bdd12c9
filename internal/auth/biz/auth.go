package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/reefs-ai/reefs-backend/internal/auth"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/oauth2"
	"github.com/reefs-ai/reefs-backend/internal/pkg/validator"
)

const (
	MinPasswordLength = 8
	MaxFailedLogins   = 5
	LockoutDuration   = 15 * time.Minute
)

// User 认证相关的用户模型
type User struct {
	ID                    string // UUID v7
	FirstName             string
	LastName              string
	Email                 string
	PasswordHash          string
	GoogleSubject         *string
	FailedLoginAttempts   int
	LockedUntil           *time.Time
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
	TermsAccepted         bool
	MarketingAccepted     bool
	CreatedAt             time.Time
}

// LoginRecord 成功登录后需要持久化的信息
type LoginRecord struct {
	At                    time.Time
	IP                    *string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// UserRepo 用户仓库接口
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByGoogleSubject(ctx context.Context, subject string) (*User, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*User, error)
	LinkGoogle(ctx context.Context, userID, subject string) error
	RecordLogin(ctx context.Context, userID string, rec *LoginRecord) error
	// RecordFailedLogin 增加失败次数，lockUntil 非空时同时锁定账户
	RecordFailedLogin(ctx context.Context, userID string, lockUntil *time.Time) error
}

// RegisterInput 注册参数
type RegisterInput struct {
	FirstName         string
	LastName          string
	Email             string
	Password          string
	TermsAccepted     bool
	MarketingAccepted bool
}

// TokenPair token 对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // 秒
}

// AuthResult 登录结果
type AuthResult struct {
	User    *User
	Tokens  *TokenPair
	Created bool
}

// GoogleAuthURL 授权跳转信息
type GoogleAuthURL struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// AuthUseCase 认证业务逻辑
type AuthUseCase struct {
	userRepo   UserRepo
	states     StateStore
	google     oauth2.SignInProvider
	jwtManager *auth.JWTManager
	stateTTL   time.Duration
	logger     *logger.Logger
	now        func() time.Time
}

// NewAuthUseCase google 为 nil 时 Google 登录不可用
func NewAuthUseCase(userRepo UserRepo, states StateStore, google oauth2.SignInProvider, jwtManager *auth.JWTManager, stateTTL time.Duration, log *logger.Logger) *AuthUseCase {
	if stateTTL <= 0 {
		stateTTL = OAuthStateTTL
	}
	return &AuthUseCase{
		userRepo:   userRepo,
		states:     states,
		google:     google,
		jwtManager: jwtManager,
		stateTTL:   stateTTL,
		logger:     log.Named("auth"),
		now:        time.Now,
	}
}

// Register 用户注册
func (uc *AuthUseCase) Register(ctx context.Context, in *RegisterInput, ip string) (*AuthResult, error) {
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" || lastName == "" {
		return nil, ErrNameRequired
	}
	email, ok := validator.Email(in.Email)
	if !ok {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if !in.TermsAccepted {
		return nil, ErrTermsNotAccepted
	}

	// 检查邮箱是否已存在
	if existing, err := uc.userRepo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailAlreadyExists
	} else if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:                uuid.Must(uuid.NewV7()).String(),
		FirstName:         firstName,
		LastName:          lastName,
		Email:             email,
		PasswordHash:      string(passwordHash),
		TermsAccepted:     true,
		MarketingAccepted: in.MarketingAccepted,
		CreatedAt:         uc.now(),
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	uc.logger.Info("user registered", zap.String("user_id", user.ID))
	return uc.generateTokens(ctx, user, ip, true)
}

// Login 用户登录
func (uc *AuthUseCase) Login(ctx context.Context, email, password, ip string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := uc.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := uc.now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, ErrAccountLocked
	}

	// Google 创建的账户没有密码
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		var lockUntil *time.Time
		if user.FailedLoginAttempts+1 >= MaxFailedLogins {
			until := now.Add(LockoutDuration)
			lockUntil = &until
			uc.logger.Warn("account locked", zap.String("user_id", user.ID), zap.String("ip", ip))
		}
		if err := uc.userRepo.RecordFailedLogin(ctx, user.ID, lockUntil); err != nil {
			uc.logger.Error("failed to record failed login", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	return uc.generateTokens(ctx, user, ip, false)
}

// RefreshAccessToken 刷新 Access Token
func (uc *AuthUseCase) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	user, err := uc.userRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if user.RefreshTokenExpiresAt == nil || user.RefreshTokenExpiresAt.Before(uc.now()) {
		return nil, ErrInvalidToken
	}

	accessToken, err := uc.jwtManager.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken, // 复用原有的 refresh token
		ExpiresIn:    int(uc.jwtManager.AccessTTL().Seconds()),
	}, nil
}

// GoogleAuthURL 生成 Google 授权地址并保存 state
func (uc *AuthUseCase) GoogleAuthURL(ctx context.Context) (*GoogleAuthURL, error) {
	if uc.google == nil {
		return nil, ErrGoogleDisabled
	}
	state := uuid.NewString()
	if err := uc.states.Save(ctx, state, uc.stateTTL); err != nil {
		return nil, fmt.Errorf("failed to save oauth state: %w", err)
	}
	return &GoogleAuthURL{URL: uc.google.AuthCodeURL(state), State: state}, nil
}

// GoogleCallback 处理 Google 回调：首次登录创建用户，否则刷新登录信息
func (uc *AuthUseCase) GoogleCallback(ctx context.Context, code, state, ip string) (*AuthResult, error) {
	if uc.google == nil {
		return nil, ErrGoogleDisabled
	}
	ok, err := uc.states.Consume(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth state: %w", err)
	}
	if !ok {
		return nil, ErrStateNotFound
	}

	info, err := uc.google.Exchange(ctx, code)
	if err != nil {
		uc.logger.Warn("google exchange failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	user, err := uc.userRepo.GetByGoogleSubject(ctx, info.Subject)
	switch {
	case err == nil:
		return uc.generateTokens(ctx, user, ip, false)
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	email := strings.ToLower(info.Email)
	user, err = uc.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := uc.userRepo.LinkGoogle(ctx, user.ID, info.Subject); err != nil {
			return nil, err
		}
		user.GoogleSubject = &info.Subject
		return uc.generateTokens(ctx, user, ip, false)
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	firstName, lastName := splitName(info)
	subject := info.Subject
	user = &User{
		ID:            uuid.Must(uuid.NewV7()).String(),
		FirstName:     firstName,
		LastName:      lastName,
		Email:         email,
		GoogleSubject: &subject,
		CreatedAt:     uc.now(),
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	uc.logger.Info("user created from google sign-in", zap.String("user_id", user.ID))
	return uc.generateTokens(ctx, user, ip, true)
}

// generateTokens 生成 token 对并记录登录信息
func (uc *AuthUseCase) generateTokens(ctx context.Context, user *User, ip string, created bool) (*AuthResult, error) {
	accessToken, err := uc.jwtManager.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refreshToken, err := uc.jwtManager.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := uc.now()
	rec := &LoginRecord{
		At:                    now,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: now.Add(uc.jwtManager.RefreshTTL()),
	}
	if normalized := validator.ClientIP(ip); normalized != "" {
		rec.IP = &normalized
	}
	if err := uc.userRepo.RecordLogin(ctx, user.ID, rec); err != nil {
		return nil, err
	}

	user.RefreshToken = &rec.RefreshToken
	user.RefreshTokenExpiresAt = &rec.RefreshTokenExpiresAt
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil

	return &AuthResult{
		User: user,
		Tokens: &TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    int(uc.jwtManager.AccessTTL().Seconds()),
		},
		Created: created,
	}, nil
}

// splitName 优先使用 given/family name，否则按第一个空格拆分显示名
func splitName(info *oauth2.UserInfo) (string, string) {
	if info.GivenName != "" || info.FamilyName != "" {
		return info.GivenName, info.FamilyName
	}
	name := strings.TrimSpace(info.Name)
	if name == "" {
		return strings.SplitN(info.Email, "@", 2)[0], ""
	}
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}
