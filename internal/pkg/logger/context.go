package logger

import (
	"context"

	"go.uber.org/zap"
)

type scopeKey struct{}

// Scope identifies the request a log line belongs to
type Scope struct {
	RequestID string
	UserID    string
}

func (s Scope) fields() []zap.Field {
	var fields []zap.Field
	if s.RequestID != "" {
		fields = append(fields, zap.String("request_id", s.RequestID))
	}
	if s.UserID != "" {
		fields = append(fields, zap.String("user_id", s.UserID))
	}
	return fields
}

// WithScope attaches s to ctx, replacing any scope already there
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope attached to ctx, or the zero Scope
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// WithUserID records the authenticated user on the request scope
func WithUserID(ctx context.Context, userID string) context.Context {
	s := ScopeFrom(ctx)
	s.UserID = userID
	return WithScope(ctx, s)
}

// WithContext returns a child logger tagged with the scope found in ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := ScopeFrom(ctx).fields()
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
