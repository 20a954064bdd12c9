package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 代理接口（Factory）使用与前端约定的扁平结构，而不是 {code,message,data}。

// ProxyFailure 失败结构 {error, status, data}
type ProxyFailure struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ProxySuccess 成功响应：{success: true, ...payload}
func ProxySuccess(c *gin.Context, payload map[string]any) {
	body := make(gin.H, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	c.JSON(http.StatusOK, body)
}

// ProxyError 上游失败或校验失败
func ProxyError(c *gin.Context, httpStatus int, message string, upstreamStatus int, data any) {
	c.JSON(httpStatus, ProxyFailure{Error: message, Status: upstreamStatus, Data: data})
}

// ProxyBadRequest 400，请求缺少必填字段
func ProxyBadRequest(c *gin.Context, message string) {
	ProxyError(c, http.StatusBadRequest, message, 0, nil)
}
