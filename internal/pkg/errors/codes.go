package errors

import "net/http"

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Auth errors (2000-2999)
	ErrAuthInvalidCredentials = 2000
	ErrAuthEmailExists        = 2002
	ErrAuthAccountLocked      = 2003
	ErrAuthInvalidToken       = 2006
	ErrAuthWeakPassword       = 2008
	ErrAuthInvalidEmail       = 2009
	ErrAuthTermsNotAccepted   = 2010
	ErrAuthOAuthState         = 2011
	ErrAuthOAuthExchange      = 2012

	// User errors (3000-3999)
	ErrUserNotFound     = 3000
	ErrUserInvalidInput = 3002

	// Project errors (4000-4999)
	ErrProjectNotFound     = 4000
	ErrProjectInvalidInput = 4001
	ErrWorkflowInvalid     = 4002

	// Chat errors (5000-5999)
	ErrChatNotConfigured = 5000
	ErrChatInvalidInput  = 5001
	ErrChatStream        = 5002

	// Factory errors (6000-6999)
	ErrFactoryUpstream      = 6000
	ErrFactoryBadResponse   = 6001
	ErrFactoryNotConfigured = 6002

	// Trace errors (7000-7999)
	ErrTraceNotFound     = 7000
	ErrTraceInvalidInput = 7001
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	ErrAuthInvalidCredentials: {ErrAuthInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	ErrAuthEmailExists:        {ErrAuthEmailExists, http.StatusConflict, "Email already exists"},
	ErrAuthAccountLocked:      {ErrAuthAccountLocked, http.StatusForbidden, "Account locked due to too many failed attempts"},
	ErrAuthInvalidToken:       {ErrAuthInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	ErrAuthWeakPassword:       {ErrAuthWeakPassword, http.StatusBadRequest, "Password is too weak"},
	ErrAuthInvalidEmail:       {ErrAuthInvalidEmail, http.StatusBadRequest, "Invalid email format"},
	ErrAuthTermsNotAccepted:   {ErrAuthTermsNotAccepted, http.StatusBadRequest, "Terms and conditions must be accepted"},
	ErrAuthOAuthState:         {ErrAuthOAuthState, http.StatusBadRequest, "Invalid or expired sign-in state"},
	ErrAuthOAuthExchange:      {ErrAuthOAuthExchange, http.StatusBadGateway, "Google sign-in failed"},

	ErrUserNotFound:     {ErrUserNotFound, http.StatusNotFound, "User not found"},
	ErrUserInvalidInput: {ErrUserInvalidInput, http.StatusBadRequest, "Invalid user input"},

	ErrProjectNotFound:     {ErrProjectNotFound, http.StatusNotFound, "Project not found"},
	ErrProjectInvalidInput: {ErrProjectInvalidInput, http.StatusBadRequest, "Invalid project input"},
	ErrWorkflowInvalid:     {ErrWorkflowInvalid, http.StatusBadRequest, "Invalid workflow state"},

	ErrChatNotConfigured: {ErrChatNotConfigured, http.StatusInternalServerError, "OpenAI API key not configured"},
	ErrChatInvalidInput:  {ErrChatInvalidInput, http.StatusBadRequest, "Invalid chat request"},
	ErrChatStream:        {ErrChatStream, http.StatusInternalServerError, "An error occurred while processing your request."},

	ErrFactoryUpstream:      {ErrFactoryUpstream, http.StatusBadGateway, "Factory request failed"},
	ErrFactoryBadResponse:   {ErrFactoryBadResponse, http.StatusBadGateway, "Unexpected response format"},
	ErrFactoryNotConfigured: {ErrFactoryNotConfigured, http.StatusInternalServerError, "Factory service not configured"},

	ErrTraceNotFound:     {ErrTraceNotFound, http.StatusNotFound, "Trace not found"},
	ErrTraceInvalidInput: {ErrTraceInvalidInput, http.StatusBadRequest, "Invalid trace input"},
}

func lookup(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}
