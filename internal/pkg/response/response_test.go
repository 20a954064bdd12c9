package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/reefs-ai/reefs-backend/internal/pkg/errors"
)

func run(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestEnvelope(t *testing.T) {
	w, body := run(t, func(c *gin.Context) { Success(c, gin.H{"id": "p1"}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["code"])
	assert.Equal(t, "p1", body["data"].(map[string]any)["id"])

	w, body = run(t, func(c *gin.Context) { Success(c, nil) })
	assert.Equal(t, map[string]any{}, body["data"])

	w, _ = run(t, func(c *gin.Context) { Created(c, nil) })
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestErrorWithCode(t *testing.T) {
	w, body := run(t, func(c *gin.Context) { ErrorWithCode(c, apperrors.ErrProjectNotFound) })
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, apperrors.ErrProjectNotFound, body["code"])
	assert.Equal(t, "Project not found", body["message"])

	w, body = run(t, func(c *gin.Context) { ErrorWithCode(c, apperrors.ErrInvalidParams, "name") })
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid parameters: name", body["message"])
}

func TestProxy(t *testing.T) {
	w, body := run(t, func(c *gin.Context) {
		ProxySuccess(c, map[string]any{"authenticated": true, "success": false})
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["authenticated"])

	w, body = run(t, func(c *gin.Context) {
		ProxyError(c, http.StatusBadGateway, "Factory deploy failed", 503, map[string]any{"raw": "down"})
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Factory deploy failed", body["error"])
	assert.EqualValues(t, 503, body["status"])
	assert.Equal(t, "down", body["data"].(map[string]any)["raw"])

	_, body = run(t, func(c *gin.Context) { ProxyBadRequest(c, "Missing required parameter: userId") })
	assert.NotContains(t, body, "status")
}
