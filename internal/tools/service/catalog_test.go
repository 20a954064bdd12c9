package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefs-ai/reefs-backend/internal/tools"
)

func TestCatalogRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewCatalogService(tools.Default()).RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tools/catalog", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data CatalogResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, tools.Default().AvailableTools(), body.Data.Tools)
	require.NotEmpty(t, body.Data.Categories)

	total := 0
	for _, g := range body.Data.Categories {
		total += len(g.Tools)
	}
	assert.Equal(t, len(body.Data.Tools), total)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"known tool", "/api/v1/tools/catalog/Gmail.SendEmail", http.StatusOK},
		{"unknown tool", "/api/v1/tools/catalog/Nope.Nothing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
