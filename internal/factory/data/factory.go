package data

import (
	"context"
	"net/url"

	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/factory/biz"
	"github.com/reefs-ai/reefs-backend/internal/pkg/factory"
	"github.com/reefs-ai/reefs-backend/internal/workflow"
)

type factoryRepo struct {
	client       *factory.Client
	workflowName string
	deployType   string
}

// NewFactoryRepo 创建 Factory 仓储
func NewFactoryRepo(client *factory.Client, cfg *conf.FactoryConfig) biz.FactoryRepo {
	return &factoryRepo{
		client:       client,
		workflowName: cfg.WorkflowName,
		deployType:   cfg.DeployType,
	}
}

func (r *factoryRepo) Authorize(ctx context.Context, userID, toolName string) (*biz.Reply, error) {
	path := "/auth/authorize/" + url.PathEscape(userID) + "/" + url.PathEscape(toolName)
	return reply(r.client.Get(ctx, path, nil))
}

func (r *factoryRepo) Tools(ctx context.Context, userID, toolkit string) (*biz.Reply, error) {
	query := url.Values{"user_id": {userID}}
	if toolkit != "" {
		query.Set("toolkit", toolkit)
	}
	return reply(r.client.Get(ctx, "/auth/tools", query))
}

func (r *factoryRepo) Deploy(ctx context.Context, userID, query string) (*biz.Reply, error) {
	return reply(r.client.Post(ctx, "/deploy/workflow", &biz.DeployRequest{
		WorkflowName: r.workflowName,
		DeployType:   r.deployType,
		UserID:       userID,
		Query:        query,
	}))
}

func (r *factoryRepo) Verify(ctx context.Context, cfg workflow.FactoryConfig) (*biz.Reply, error) {
	return reply(r.client.Post(ctx, "/verify/workflow", cfg))
}

func reply(res *factory.Reply, err error) (*biz.Reply, error) {
	if err != nil {
		return nil, err
	}
	return &biz.Reply{Status: res.Status, Data: res.Data, Body: res.Body}, nil
}
