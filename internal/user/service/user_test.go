package service

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/reefs-ai/reefs-backend/internal/auth/middleware"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/user/biz"
)

type memoryProfiles struct {
	profiles map[string]*biz.Profile
}

func (m *memoryProfiles) Get(_ context.Context, id string) (*biz.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, biz.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryProfiles) Update(_ context.Context, id string, upd *biz.ProfileUpdate) error {
	p, ok := m.profiles[id]
	if !ok {
		return biz.ErrUserNotFound
	}
	if upd.FirstName != nil {
		p.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		p.LastName = *upd.LastName
	}
	if upd.MarketingAccepted != nil {
		p.MarketingAccepted = *upd.MarketingAccepted
	}
	return nil
}

func (m *memoryProfiles) SetFactorySuccess(_ context.Context, id, message string, at time.Time) error {
	p, ok := m.profiles[id]
	if !ok {
		return biz.ErrUserNotFound
	}
	p.FactorySuccessMessage = &message
	p.LastUpdated = &at
	return nil
}

func newRouter(t *testing.T) (*gin.Engine, *memoryProfiles) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := &memoryProfiles{profiles: map[string]*biz.Profile{
		"u1": {ID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
	}}
	svc := NewUserService(biz.NewUserUseCase(repo), logger.NewNop())

	r := gin.New()
	api := r.Group("/api/v1")
	svc.RegisterWebhookRoutes(api)
	authed := api.Group("", func(c *gin.Context) {
		middleware.SetSession(c, middleware.Session{UserID: "u1"})
	})
	svc.RegisterRoutes(authed)
	return r, repo
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetAndUpdateMe(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodGet, "/api/v1/users/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada", gjson.Get(w.Body.String(), "data.firstName").String())

	w = do(r, http.MethodPatch, "/api/v1/users/me", `{"firstName":"  Grace ","marketingAccepted":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Grace", gjson.Get(w.Body.String(), "data.firstName").String())
	assert.True(t, gjson.Get(w.Body.String(), "data.marketingAccepted").Bool())

	w = do(r, http.MethodPatch, "/api/v1/users/me", `{"lastName":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFactorySuccess(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"stored", `{"uid":"u1","message":"Workflow built"}`, http.StatusOK},
		{"missing uid", `{"message":"Workflow built"}`, http.StatusBadRequest},
		{"missing message", `{"uid":"u1"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"unknown user", `{"uid":"ghost","message":"m"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, repo := newRouter(t)
			w := do(r, http.MethodPost, "/api/v1/factory/success", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusOK {
				p := repo.profiles["u1"]
				require.NotNil(t, p.FactorySuccessMessage)
				assert.Equal(t, "Workflow built", *p.FactorySuccessMessage)
				assert.NotNil(t, p.LastUpdated)
			}
		})
	}
}
