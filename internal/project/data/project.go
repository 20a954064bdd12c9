package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	chattypes "github.com/reefs-ai/reefs-backend/internal/chat/types"
	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/project/biz"
	"github.com/reefs-ai/reefs-backend/internal/project/types"
)

// ProjectPO 项目表
type ProjectPO struct {
	ID            string                                  `gorm:"type:varchar(36);primarykey"`
	UserID        string                                  `gorm:"size:64;not null;index:idx_projects_user_updated"`
	Name          string                                  `gorm:"size:255;not null"`
	Messages      database.JSON[[]chattypes.ChatMessage] `gorm:"not null"`
	WorkflowState database.JSON[json.RawMessage]
	BuiltWorkflow database.JSON[json.RawMessage]
	CreatedAt     time.Time
	UpdatedAt     time.Time      `gorm:"index:idx_projects_user_updated"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (ProjectPO) TableName() string {
	return "projects"
}

// Models 本包管理的表
func Models() []any {
	return []any{&ProjectPO{}}
}

type projectRepo struct {
	db *database.DB
}

// NewProjectRepo 创建项目仓储
func NewProjectRepo(db *database.DB) biz.ProjectRepo {
	return &projectRepo{db: db}
}

func (r *projectRepo) List(ctx context.Context, userID string) ([]*types.Project, error) {
	var pos []ProjectPO
	if err := r.db.Conn(ctx).Where("user_id = ?", userID).
		Order("updated_at DESC").Find(&pos).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Project, 0, len(pos))
	for i := range pos {
		out = append(out, toProject(&pos[i]))
	}
	return out, nil
}

func (r *projectRepo) Get(ctx context.Context, id string) (*types.Project, error) {
	var po ProjectPO
	if err := r.db.Conn(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return toProject(&po), nil
}

func (r *projectRepo) Create(ctx context.Context, p *types.Project) error {
	po := &ProjectPO{
		ID:            p.ID,
		UserID:        p.UserID,
		Name:          p.Name,
		Messages:      database.NewJSON(nonNil(p.Messages)),
		WorkflowState: database.NewJSON(p.WorkflowState),
		BuiltWorkflow: database.NewJSON(p.BuiltWorkflow),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	return r.db.Conn(ctx).Create(po).Error
}

func (r *projectRepo) Update(ctx context.Context, id string, patch *biz.Patch) error {
	updates := map[string]any{"updated_at": patch.UpdatedAt}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Messages != nil {
		updates["messages"] = database.NewJSON(nonNil(*patch.Messages))
	}
	if patch.WorkflowState != nil {
		updates["workflow_state"] = database.NewJSON(patch.WorkflowState)
	}
	if patch.BuiltWorkflow != nil {
		updates["built_workflow"] = database.NewJSON(patch.BuiltWorkflow)
	}

	res := r.db.Conn(ctx).Model(&ProjectPO{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrProjectNotFound
	}
	return nil
}

func (r *projectRepo) AppendMessages(ctx context.Context, id string, msgs []chattypes.ChatMessage, at time.Time) error {
	return r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var po ProjectPO
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "messages").Where("id = ?", id).First(&po).Error; err != nil {
			if database.IsRecordNotFoundError(err) {
				return biz.ErrProjectNotFound
			}
			return err
		}
		all := append(nonNil(po.Messages.V), msgs...)
		return tx.Model(&ProjectPO{}).Where("id = ?", id).Updates(map[string]any{
			"messages":   database.NewJSON(all),
			"updated_at": at,
		}).Error
	})
}

func (r *projectRepo) Delete(ctx context.Context, id string) error {
	res := r.db.Conn(ctx).Where("id = ?", id).Delete(&ProjectPO{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrProjectNotFound
	}
	return nil
}

func toProject(po *ProjectPO) *types.Project {
	return &types.Project{
		ID:            po.ID,
		UserID:        po.UserID,
		Name:          po.Name,
		Messages:      nonNil(po.Messages.V),
		WorkflowState: document(po.WorkflowState.V),
		BuiltWorkflow: document(po.BuiltWorkflow.V),
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
	}
}

// document 存储的 JSON null 视为缺失
func document(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

func nonNil(msgs []chattypes.ChatMessage) []chattypes.ChatMessage {
	if msgs == nil {
		return []chattypes.ChatMessage{}
	}
	return msgs
}
