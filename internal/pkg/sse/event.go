package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrStreamClosed 流已关闭
var ErrStreamClosed = errors.New("sse: stream closed")

// Event SSE 事件
type Event struct {
	Type string `json:"type"` // 事件类型
	Data any    `json:"data"` // 事件数据
}

// FormatSSE 格式化为 SSE 消息格式
func (e Event) FormatSSE() string {
	data, err := json.Marshal(e.Data)
	if err != nil {
		data = []byte("null")
	}
	return "event: " + e.Type + "\ndata: " + string(data) + "\n\n"
}

// SetHeaders 设置 SSE 响应头
func SetHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

// Writer 同步写入器，用于由单个 goroutine 顺序产生事件的场景（如聊天流）
type Writer struct {
	c *gin.Context
}

// NewWriter 设置响应头并返回写入器
func NewWriter(c *gin.Context) *Writer {
	SetHeaders(c)
	return &Writer{c: c}
}

// Write 写入一个事件并立即刷新
func (w *Writer) Write(eventType string, data any) error {
	if err := w.c.Request.Context().Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w.c.Writer, Event{Type: eventType, Data: data}.FormatSSE()); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}
