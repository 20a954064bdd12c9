package service

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/reefs-ai/reefs-backend/internal/auth"
	"github.com/reefs-ai/reefs-backend/internal/auth/biz"
	authdata "github.com/reefs-ai/reefs-backend/internal/auth/data"
	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	userdata "github.com/reefs-ai/reefs-backend/internal/user/data"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewSQLiteMemory(logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(&userdata.UserPO{}))

	jm := auth.NewJWTManager(&conf.AuthConfig{JWTSecret: "secret"})
	uc := biz.NewAuthUseCase(authdata.NewAuthUserRepo(db), biz.NewMemoryStateStore(), nil, jm, 0, logger.NewNop())
	svc := NewAuthService(uc, nil, logger.NewNop())

	r := gin.New()
	svc.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func post(r http.Handler, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const registerBody = `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"correct-horse","termsAccepted":true}`

func TestRegisterLoginRefresh(t *testing.T) {
	r := newRouter(t)

	w := post(r, "/api/v1/auth/register", registerBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(t, "ada@example.com", gjson.Get(body, "data.user.email").String())
	assert.True(t, gjson.Get(body, "data.isNew").Bool())
	assert.NotEmpty(t, gjson.Get(body, "data.tokens.access_token").String())

	w = post(r, "/api/v1/auth/register", registerBody)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(r, "/api/v1/auth/login", `{"email":"ada@example.com","password":"correct-horse"}`, "X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	refresh := gjson.Get(w.Body.String(), "data.tokens.refresh_token").String()
	require.NotEmpty(t, refresh)

	w = post(r, "/api/v1/auth/login", `{"email":"ada@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/api/v1/auth/refresh", `{"refresh_token":"`+refresh+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "data.access_token").String())

	w = post(r, "/api/v1/auth/refresh", `{"refresh_token":"bogus"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"terms not accepted", `{"firstName":"A","lastName":"B","email":"a@example.com","password":"correct-horse"}`, http.StatusBadRequest},
		{"short password", `{"firstName":"A","lastName":"B","email":"a@example.com","password":"short","termsAccepted":true}`, http.StatusBadRequest},
		{"bad email", `{"firstName":"A","lastName":"B","email":"nope","password":"correct-horse","termsAccepted":true}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(newRouter(t), "/api/v1/auth/register", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestGoogleDisabled(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/url", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetClientIP(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", GetClientIP(c))

	c.Request.Header.Set("X-Real-IP", "192.0.2.2")
	assert.Equal(t, "192.0.2.2", GetClientIP(c))

	c.Request.Header.Set("X-Forwarded-For", " 192.0.2.3 , 10.0.0.1")
	assert.Equal(t, "192.0.2.3", GetClientIP(c))
}
