package biz

import "errors"

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrNameRequired     = errors.New("name is required")
	ErrInvalidWorkflow  = errors.New("invalid workflow state")
	ErrInvalidFormat    = errors.New("format must be md or html")
	ErrMessagesRequired = errors.New("messages are required")
)
