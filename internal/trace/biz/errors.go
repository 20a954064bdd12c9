package biz

import "errors"

var (
	ErrTraceNotFound    = errors.New("trace not found")
	ErrSpanNotFound     = errors.New("span not found")
	ErrUserIDRequired   = errors.New("user_id is required")
	ErrTraceIDRequired  = errors.New("trace_id is required")
	ErrSpanIDRequired   = errors.New("span_id is required")
	ErrInvalidEndStatus = errors.New("status must be completed or failed")
)
