package sse

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultBuffer    = 16
	defaultHeartbeat = 30 * time.Second
)

// Stream is one server-sent event connection registered with a Hub.
//
// Send may be called from any goroutine. Only Serve writes to the response,
// heartbeats included.
type Stream struct {
	client    *Client
	c         *gin.Context
	hub       *Hub
	heartbeat time.Duration
	onError   func(error)
	onClose   func()

	sendMu    sync.Mutex
	closeOnce sync.Once
}

// Option configures a Stream
type Option func(*Stream)

// WithHeartbeat sets the comment ping interval; 0 disables it
func WithHeartbeat(d time.Duration) Option {
	return func(s *Stream) { s.heartbeat = d }
}

// WithBuffer sets how many events may queue before the oldest is dropped
func WithBuffer(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.client = newClient(s.client.ID, s.client.Resource, n)
		}
	}
}

// OnError is called for write failures and dropped events
func OnError(fn func(error)) Option {
	return func(s *Stream) { s.onError = fn }
}

// OnClose is called once when the stream ends
func OnClose(fn func()) Option {
	return func(s *Stream) { s.onClose = fn }
}

// Open 创建订阅 resource 的流,调用 Serve 后才会注册到 hub
func Open(c *gin.Context, hub *Hub, resource string, opts ...Option) *Stream {
	s := &Stream{
		client:    newClient(uuid.NewString(), resource, defaultBuffer),
		c:         c,
		hub:       hub,
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send queues an event. When the buffer is full the oldest queued event is
// discarded so the client always ends up with the most recent state.
func (s *Stream) Send(eventType string, data any) error {
	ev := Event{Type: eventType, Data: data}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	for attempt := 0; ; attempt++ {
		select {
		case <-s.client.done:
			return ErrStreamClosed
		default:
		}
		select {
		case s.client.Channel <- ev:
			return nil
		default:
		}
		if attempt > 0 {
			return fmt.Errorf("sse: buffer full, event dropped: %s", eventType)
		}
		select {
		case old := <-s.client.Channel:
			s.reportError(fmt.Errorf("sse: buffer full, dropped older %s event", old.Type))
		default:
		}
	}
}

// Close ends the stream; safe to call more than once
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.client.shutdown()
		s.hub.Unregister(s.client)
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Closed reports whether the stream has ended
func (s *Stream) Closed() bool {
	select {
	case <-s.client.done:
		return true
	default:
		return false
	}
}

// Serve writes queued events until the client goes away or the stream is
// closed, by Close or by Hub.CloseAll.
func (s *Stream) Serve() {
	SetHeaders(s.c)
	s.hub.Register(s.client)
	defer s.Close()

	hello := Event{
		Type: "connected",
		Data: map[string]string{"client_id": s.client.ID, "resource": s.client.Resource},
	}
	if !s.write(hello.FormatSSE()) {
		return
	}

	var tick <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	gone := s.c.Request.Context().Done()
	for {
		select {
		case <-gone:
			return
		case <-s.client.done:
			return
		case ev := <-s.client.Channel:
			if !s.write(ev.FormatSSE()) {
				return
			}
		case <-tick:
			if !s.write(": heartbeat\n\n") {
				return
			}
		}
	}
}

func (s *Stream) write(payload string) bool {
	if _, err := fmt.Fprint(s.c.Writer, payload); err != nil {
		s.reportError(err)
		return false
	}
	s.c.Writer.Flush()
	return true
}

func (s *Stream) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}
