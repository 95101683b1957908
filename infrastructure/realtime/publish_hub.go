package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

// Hub fans publish events out to per-user SSE subscribers.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[chan model.PublishEvent]struct{}
}

func NewPublishHub() *Hub {
	return &Hub{users: make(map[string]map[chan model.PublishEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated user (user_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := h.Subscribe(userID)
	defer h.Unsubscribe(userID, ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: " + evt.Type + "\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *Hub) Subscribe(userID string) chan model.PublishEvent {
	ch := make(chan model.PublishEvent, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan model.PublishEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
	return ch
}

func (h *Hub) Unsubscribe(userID string, ch chan model.PublishEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// Broadcast delivers evt to every stream of its user. Slow subscribers miss events.
func (h *Hub) Broadcast(evt model.PublishEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.users[evt.UserID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
