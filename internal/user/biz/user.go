package biz

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUIDRequired     = errors.New("uid is required")
	ErrMessageRequired = errors.New("message is required")
	ErrEmptyName       = errors.New("name cannot be empty")
)

// Profile 用户的 UserData 文档
type Profile struct {
	ID                    string     `json:"id"`
	FirstName             string     `json:"firstName"`
	LastName              string     `json:"lastName"`
	Email                 string     `json:"email"`
	LastLoggedIn          *time.Time `json:"lastLoggedIn"`
	LastLoggedInIP        *string    `json:"lastLoggedInIp"`
	TermsAccepted         bool       `json:"termsAccepted"`
	MarketingAccepted     bool       `json:"marketingAccepted"`
	CreatedAt             time.Time  `json:"createdAt"`
	FactorySuccessMessage *string    `json:"factorySuccessMessage,omitempty"`
	LastUpdated           *time.Time `json:"lastUpdated,omitempty"`
}

// ProfileUpdate 用户可修改的字段, nil 表示不变
type ProfileUpdate struct {
	FirstName         *string `json:"firstName"`
	LastName          *string `json:"lastName"`
	MarketingAccepted *bool   `json:"marketingAccepted"`
}

// ProfileRepo 用户资料数据接口
type ProfileRepo interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Update(ctx context.Context, id string, upd *ProfileUpdate) error
	SetFactorySuccess(ctx context.Context, id, message string, at time.Time) error
}

// UserUseCase 用户资料业务逻辑
type UserUseCase struct {
	repo ProfileRepo
	now  func() time.Time
}

func NewUserUseCase(repo ProfileRepo) *UserUseCase {
	return &UserUseCase{repo: repo, now: time.Now}
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	return uc.repo.Get(ctx, userID)
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, upd *ProfileUpdate) (*Profile, error) {
	for _, name := range []*string{upd.FirstName, upd.LastName} {
		if name == nil {
			continue
		}
		*name = strings.TrimSpace(*name)
		if *name == "" {
			return nil, ErrEmptyName
		}
	}
	if err := uc.repo.Update(ctx, userID, upd); err != nil {
		return nil, err
	}
	return uc.repo.Get(ctx, userID)
}

// RecordFactorySuccess 保存 Factory 在工作流构建完成时发来的消息
func (uc *UserUseCase) RecordFactorySuccess(ctx context.Context, uid, message string) error {
	if uid == "" {
		return ErrUIDRequired
	}
	if message == "" {
		return ErrMessageRequired
	}
	return uc.repo.SetFactorySuccess(ctx, uid, message, uc.now().UTC())
}
