package biz

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrAccountLocked      = errors.New("account is locked due to too many failed login attempts")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrTermsNotAccepted   = errors.New("terms and conditions must be accepted")
	ErrNameRequired       = errors.New("first and last name are required")
	ErrGoogleDisabled     = errors.New("google sign-in is not configured")
	ErrStateNotFound      = errors.New("sign-in state not found or expired")
	ErrOAuthExchange      = errors.New("google sign-in failed")
)
