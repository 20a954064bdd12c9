package sse

import "sync"

// Client is the hub's handle on one open stream
type Client struct {
	ID       string
	Resource string // project:<id>, traces:<user>
	Channel  chan Event

	done     chan struct{}
	doneOnce sync.Once
}

func newClient(id, resource string, buffer int) *Client {
	return &Client{
		ID:       id,
		Resource: resource,
		Channel:  make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

func (c *Client) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Hub 记录所有打开的 SSE 连接,服务停止时统一关闭
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Count 订阅 resource 的连接数
func (h *Hub) Count(resource string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for c := range h.clients {
		if c.Resource == resource {
			n++
		}
	}
	return n
}

// Total 当前全部连接数
func (h *Hub) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll ends every registered stream so long-lived handlers return
// before the server shuts down.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.shutdown()
		delete(h.clients, c)
	}
}
