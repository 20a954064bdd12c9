package errors

import "fmt"

// AppError is an API error identified by a business code. Status and
// message come from the code table; Details is appended to the message.
type AppError struct {
	Code    int
	Details string
}

// New creates an AppError; only the first detail is kept
func New(code int, details ...string) *AppError {
	e := &AppError{Code: code}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message())
}

// HTTPStatus 对应的 HTTP 状态码,未知错误码按 500 处理
func (e *AppError) HTTPStatus() int {
	return lookup(e.Code).Status
}

// Message 返回面向客户端的提示信息
func (e *AppError) Message() string {
	msg := lookup(e.Code).Message
	if e.Details != "" {
		return msg + ": " + e.Details
	}
	return msg
}
