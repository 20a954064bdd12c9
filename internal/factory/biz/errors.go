package biz

import (
	"errors"
	"fmt"
)

var (
	ErrUserIDRequired        = errors.New("userId is required")
	ErrToolNameRequired      = errors.New("toolName is required")
	ErrToolIDRequired        = errors.New("toolId is required")
	ErrQueryRequired         = errors.New("query is required")
	ErrWorkflowStateRequired = errors.New("workflowState is required")
)

// 各上游操作失败时返回给调用方的消息
const (
	MsgAuthorizeFailed    = "Authorization failed"
	MsgToolsFailed        = "Failed to get tools"
	MsgDeployFailed       = "Factory deploy failed"
	MsgVerifyFailed       = "Factory verify failed"
	MsgUnexpectedResponse = "Unexpected response format"
)

// UpstreamError Factory 调用失败。Status 和 Data 为上游的响应, 请求未得到响应时都为空
type UpstreamError struct {
	Message string
	Status  int
	Data    any
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
