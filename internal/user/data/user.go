package data

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/user/biz"
)

// UserPO represents the database model
type UserPO struct {
	ID        string `gorm:"type:varchar(36);primarykey"`
	FirstName string `gorm:"size:100;not null"`
	LastName  string `gorm:"size:100;not null"`
	Email     string `gorm:"size:255;not null;uniqueIndex:idx_users_email"`

	// 认证信息
	PasswordHash  string  `gorm:"size:255"`
	GoogleSubject *string `gorm:"size:64;uniqueIndex:idx_users_google_subject"`

	// Refresh Token
	RefreshToken          *string `gorm:"size:128;index"`
	RefreshTokenExpiresAt *time.Time

	// 登录追踪
	LastLoggedIn        *time.Time
	LastLoggedInIP      *string `gorm:"column:last_logged_in_ip;size:45"`
	FailedLoginAttempts int     `gorm:"not null;default:0"`
	LockedUntil         *time.Time

	// 同意条款
	TermsAccepted     bool `gorm:"not null;default:false"`
	MarketingAccepted bool `gorm:"not null;default:false"`

	// Factory 回调
	FactorySuccessMessage *string `gorm:"type:text"`
	LastUpdated           *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (UserPO) TableName() string {
	return "users"
}

// Models 本包管理的表
func Models() []any {
	return []any{&UserPO{}}
}

// ProfileRepo 实现 biz.ProfileRepo
type ProfileRepo struct {
	db *database.DB
}

func NewProfileRepo(db *database.DB) biz.ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) Get(ctx context.Context, id string) (*biz.Profile, error) {
	var po UserPO
	if err := r.db.Conn(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrUserNotFound
		}
		return nil, err
	}
	return ToProfile(&po), nil
}

func (r *ProfileRepo) Update(ctx context.Context, id string, upd *biz.ProfileUpdate) error {
	fields := map[string]any{}
	if upd.FirstName != nil {
		fields["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		fields["last_name"] = *upd.LastName
	}
	if upd.MarketingAccepted != nil {
		fields["marketing_accepted"] = *upd.MarketingAccepted
	}
	if len(fields) == 0 {
		return nil
	}
	return r.updates(ctx, id, fields)
}

func (r *ProfileRepo) SetFactorySuccess(ctx context.Context, id, message string, at time.Time) error {
	return r.updates(ctx, id, map[string]any{
		"factory_success_message": message,
		"last_updated":            at,
	})
}

func (r *ProfileRepo) updates(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.Conn(ctx).Model(&UserPO{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrUserNotFound
	}
	return nil
}

// ToProfile 转换为公开资料
func ToProfile(po *UserPO) *biz.Profile {
	return &biz.Profile{
		ID:                    po.ID,
		FirstName:             po.FirstName,
		LastName:              po.LastName,
		Email:                 po.Email,
		LastLoggedIn:          po.LastLoggedIn,
		LastLoggedInIP:        po.LastLoggedInIP,
		TermsAccepted:         po.TermsAccepted,
		MarketingAccepted:     po.MarketingAccepted,
		CreatedAt:             po.CreatedAt,
		FactorySuccessMessage: po.FactorySuccessMessage,
		LastUpdated:           po.LastUpdated,
	}
}
