package service

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth/middleware"
	apperrors "github.com/reefs-ai/reefs-backend/internal/pkg/errors"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
	"github.com/reefs-ai/reefs-backend/internal/pkg/sse"
	"github.com/reefs-ai/reefs-backend/internal/trace/biz"
)

// EventView 是 SSE / WebSocket 推送的视图事件名
const EventView = "view"

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Control 是 WebSocket 客户端发来的面板控制命令
type Control struct {
	Action string `json:"action"` // pause | resume | filter
	Status string `json:"status,omitempty"`
}

// TraceService trace 查看与采集服务
type TraceService struct {
	uc        *biz.TraceUseCase
	hub       *sse.Hub
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewTraceService 创建 trace 服务
func NewTraceService(uc *biz.TraceUseCase, hub *sse.Hub, heartbeat time.Duration, log *logger.Logger) *TraceService {
	return &TraceService{uc: uc, hub: hub, heartbeat: heartbeat, logger: log}
}

// RegisterRoutes 注册查看端路由(需要 JWT)
func (s *TraceService) RegisterRoutes(r *gin.RouterGroup) {
	traces := r.Group("/traces")
	{
		traces.GET("", s.List)
		traces.GET("/stream", s.Stream)
		traces.GET("/ws", s.WebSocket)
		traces.GET("/:id", s.Detail)
	}
}

// RegisterCollectorRoutes 注册采集端路由,调用方负责挂载 FactoryToken
func (s *TraceService) RegisterCollectorRoutes(r *gin.RouterGroup) {
	collector := r.Group("/collector")
	{
		collector.POST("/traces", s.StartTrace)
		collector.POST("/traces/:traceId/end", s.EndTrace)
		collector.POST("/spans", s.StartSpan)
		collector.POST("/spans/:spanId/end", s.EndSpan)
	}
}

// List 当前用户的日志条目
// GET /api/v1/traces?status=failed
func (s *TraceService) List(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	entries, err := s.uc.Entries(c.Request.Context(), session.UserID, c.DefaultQuery("status", biz.StatusAll))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, entries)
}

// Detail 单个 trace 及其 span
// GET /api/v1/traces/:id
func (s *TraceService) Detail(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	detail, err := s.uc.Detail(c.Request.Context(), session.UserID, c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, detail)
}

// Stream 以 SSE 推送实时面板视图
// GET /api/v1/traces/stream?status=all
func (s *TraceService) Stream(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	ctx := c.Request.Context()
	log := s.logger.WithContext(ctx).With(zap.String("user_id", session.UserID))

	panel, err := s.uc.OpenPanel(ctx, session.UserID, c.DefaultQuery("status", biz.StatusAll))
	if err != nil {
		s.handleError(c, err)
		return
	}

	stream := sse.Open(c, s.hub, "traces:"+session.UserID,
		sse.WithHeartbeat(s.heartbeat),
		sse.OnError(func(err error) {
			log.Debug("trace stream write failed", zap.Error(err))
		}),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for view := range panel.Updates() {
			if err := stream.Send(EventView, view); errors.Is(err, sse.ErrStreamClosed) {
				return
			}
		}
	}()

	stream.Serve()
	panel.Close()
	wg.Wait()
}

// WebSocket 实时面板,支持 pause / resume / filter 控制
// GET /api/v1/traces/ws?status=all&token=...
func (s *TraceService) WebSocket(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	ctx := c.Request.Context()
	log := s.logger.WithContext(ctx).With(zap.String("user_id", session.UserID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		return
	}
	defer conn.Close()

	panel, err := s.uc.OpenPanel(ctx, session.UserID, c.DefaultQuery("status", biz.StatusAll))
	if err != nil {
		log.Warn("failed to open trace panel", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to subscribe"),
			time.Now().Add(wsWriteWait))
		return
	}
	defer panel.Close()

	// 读协程只处理控制命令,所有写操作都在当前协程
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var ctl Control
			if err := conn.ReadJSON(&ctl); err != nil {
				return
			}
			switch ctl.Action {
			case "pause":
				panel.Pause()
			case "resume":
				panel.Resume()
			case "filter":
				panel.SetFilter(ctl.Status)
			default:
				log.Debug("unknown panel action", zap.String("action", ctl.Action))
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-readerDone
	}()

	var tick <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-readerDone:
			return
		case <-ctx.Done():
			return
		case view, ok := <-panel.Updates():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(gin.H{"type": EventView, "data": view}); err != nil {
				return
			}
		case <-tick:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// StartTrace 采集端:trace 开始
// POST /api/v1/collector/traces
func (s *TraceService) StartTrace(c *gin.Context) {
	var req biz.StartTraceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrTraceInvalidInput, err.Error())
		return
	}
	t, err := s.uc.StartTrace(c.Request.Context(), &req)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Created(c, t)
}

// EndTrace 采集端:trace 结束
// POST /api/v1/collector/traces/:traceId/end
func (s *TraceService) EndTrace(c *gin.Context) {
	var req biz.EndTraceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrTraceInvalidInput, err.Error())
		return
	}
	t, err := s.uc.EndTrace(c.Request.Context(), c.Param("traceId"), &req)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, t)
}

// StartSpan 采集端:span 开始
// POST /api/v1/collector/spans
func (s *TraceService) StartSpan(c *gin.Context) {
	var req biz.StartSpanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrTraceInvalidInput, err.Error())
		return
	}
	sp, err := s.uc.StartSpan(c.Request.Context(), &req)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Created(c, sp)
}

// EndSpan 采集端:span 结束
// POST /api/v1/collector/spans/:spanId/end
func (s *TraceService) EndSpan(c *gin.Context) {
	var req biz.EndSpanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrTraceInvalidInput, err.Error())
		return
	}
	sp, err := s.uc.EndSpan(c.Request.Context(), c.Param("spanId"), &req)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, sp)
}

// handleError 统一错误处理
func (s *TraceService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrUserIDRequired),
		errors.Is(err, biz.ErrTraceIDRequired),
		errors.Is(err, biz.ErrSpanIDRequired),
		errors.Is(err, biz.ErrInvalidEndStatus):
		response.ErrorWithCode(c, apperrors.ErrTraceInvalidInput, err.Error())
	case errors.Is(err, biz.ErrTraceNotFound):
		response.ErrorWithCode(c, apperrors.ErrTraceNotFound)
	case errors.Is(err, biz.ErrSpanNotFound):
		response.NotFound(c, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		response.InternalError(c, "internal server error")
	}
}
