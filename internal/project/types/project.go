package types

import (
	"encoding/json"
	"time"

	chattypes "github.com/reefs-ai/reefs-backend/internal/chat/types"
)

// Project 设计中的工作流及其对话
type Project struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"userId"`
	Name          string                  `json:"name"`
	Messages      []chattypes.ChatMessage `json:"messages"`
	WorkflowState json.RawMessage         `json:"workflowState"`
	BuiltWorkflow json.RawMessage         `json:"builtWorkflow"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// Conversation 项目的对话视图
type Conversation struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	UpdatedAt time.Time               `json:"updatedAt"`
	Messages  []chattypes.ChatMessage `json:"messages"`
}

func (p *Project) Conversation() Conversation {
	return Conversation{
		ID:        p.ID,
		Title:     p.Name,
		UpdatedAt: p.UpdatedAt,
		Messages:  p.Messages,
	}
}

// Summary 列表用的项目摘要, 不含大文档
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"messageCount"`
	HasWorkflow  bool      `json:"hasWorkflow"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (p *Project) Summarize() Summary {
	return Summary{
		ID:           p.ID,
		Name:         p.Name,
		MessageCount: len(p.Messages),
		HasWorkflow:  len(p.WorkflowState) > 0,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
