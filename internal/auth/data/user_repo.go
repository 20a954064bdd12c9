package data

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/reefs-ai/reefs-backend/internal/auth/biz"
	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/user/data"
)

// AuthUserRepo 认证用户仓库
// 与 user 模块共用 users 表
type AuthUserRepo struct {
	db *database.DB
}

// NewAuthUserRepo 创建认证用户仓库
func NewAuthUserRepo(db *database.DB) biz.UserRepo {
	return &AuthUserRepo{db: db}
}

// Create 创建用户
func (r *AuthUserRepo) Create(ctx context.Context, user *biz.User) error {
	po := toUserPO(user)
	if err := r.db.Conn(ctx).Create(po).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return biz.ErrEmailAlreadyExists
		}
		return err
	}
	user.CreatedAt = po.CreatedAt
	return nil
}

// GetByID 根据 ID 获取用户
func (r *AuthUserRepo) GetByID(ctx context.Context, id string) (*biz.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail 根据邮箱获取用户
func (r *AuthUserRepo) GetByEmail(ctx context.Context, email string) (*biz.User, error) {
	return r.first(ctx, "email = ?", email)
}

// GetByGoogleSubject 根据 Google subject 获取用户
func (r *AuthUserRepo) GetByGoogleSubject(ctx context.Context, subject string) (*biz.User, error) {
	return r.first(ctx, "google_subject = ?", subject)
}

// GetByRefreshToken 根据 Refresh Token 获取用户
func (r *AuthUserRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (*biz.User, error) {
	return r.first(ctx, "refresh_token = ?", refreshToken)
}

// LinkGoogle 绑定 Google 账户
func (r *AuthUserRepo) LinkGoogle(ctx context.Context, userID, subject string) error {
	return r.updates(ctx, userID, map[string]any{"google_subject": subject})
}

// RecordLogin 更新登录信息并重置失败次数
func (r *AuthUserRepo) RecordLogin(ctx context.Context, userID string, rec *biz.LoginRecord) error {
	return r.updates(ctx, userID, map[string]any{
		"last_logged_in":           rec.At,
		"last_logged_in_ip":        rec.IP,
		"refresh_token":            rec.RefreshToken,
		"refresh_token_expires_at": rec.RefreshTokenExpiresAt,
		"failed_login_attempts":    0,
		"locked_until":             nil,
	})
}

// RecordFailedLogin 增加登录失败次数
func (r *AuthUserRepo) RecordFailedLogin(ctx context.Context, userID string, lockUntil *time.Time) error {
	fields := map[string]any{
		"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
	}
	if lockUntil != nil {
		fields["locked_until"] = *lockUntil
	}
	return r.updates(ctx, userID, fields)
}

func (r *AuthUserRepo) first(ctx context.Context, query string, arg any) (*biz.User, error) {
	var po data.UserPO
	if err := r.db.Conn(ctx).Where(query, arg).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrUserNotFound
		}
		return nil, err
	}
	return toBizUser(&po), nil
}

func (r *AuthUserRepo) updates(ctx context.Context, userID string, fields map[string]any) error {
	res := r.db.Conn(ctx).Model(&data.UserPO{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		if database.IsDuplicateKeyError(res.Error) {
			return biz.ErrEmailAlreadyExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrUserNotFound
	}
	return nil
}

func toUserPO(user *biz.User) *data.UserPO {
	return &data.UserPO{
		ID:                    user.ID,
		FirstName:             user.FirstName,
		LastName:              user.LastName,
		Email:                 user.Email,
		PasswordHash:          user.PasswordHash,
		GoogleSubject:         user.GoogleSubject,
		RefreshToken:          user.RefreshToken,
		RefreshTokenExpiresAt: user.RefreshTokenExpiresAt,
		FailedLoginAttempts:   user.FailedLoginAttempts,
		LockedUntil:           user.LockedUntil,
		TermsAccepted:         user.TermsAccepted,
		MarketingAccepted:     user.MarketingAccepted,
		CreatedAt:             user.CreatedAt,
	}
}

func toBizUser(po *data.UserPO) *biz.User {
	return &biz.User{
		ID:                    po.ID,
		FirstName:             po.FirstName,
		LastName:              po.LastName,
		Email:                 po.Email,
		PasswordHash:          po.PasswordHash,
		GoogleSubject:         po.GoogleSubject,
		FailedLoginAttempts:   po.FailedLoginAttempts,
		LockedUntil:           po.LockedUntil,
		RefreshToken:          po.RefreshToken,
		RefreshTokenExpiresAt: po.RefreshTokenExpiresAt,
		TermsAccepted:         po.TermsAccepted,
		MarketingAccepted:     po.MarketingAccepted,
		CreatedAt:             po.CreatedAt,
	}
}
