package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"gosts/internal"
)

// Event types streamed to subscribers.
const (
	EventProgress = "progress"
	EventFinished = "finished"
	EventFailed   = "failed"
)

// Event is one notification about a running assessment.
type Event struct {
	AssessmentID string    `json:"assessment_id"`
	Type         string    `json:"type"`
	Done         int       `json:"done"`
	Total        int       `json:"total"`
	Progress     float64   `json:"progress"`
	Passed       *bool     `json:"passed,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Terminal reports whether no further events follow for the assessment.
func (e Event) Terminal() bool { return e.Type != EventProgress }

func progressEvent(id string, done, total int) Event {
	ev := Event{AssessmentID: id, Type: EventProgress, Done: done, Total: total, Timestamp: time.Now()}
	if total > 0 {
		ev.Progress = float64(done) / float64(total)
	}
	return ev
}

// SSEHub fans assessment events out to Server-Sent Events clients keyed by
// assessment ID. Slow clients miss events rather than stall the scheduler.
type SSEHub struct {
	mu        sync.RWMutex
	clients   map[string]map[chan Event]struct{}
	log       *internal.Logger
	keepAlive time.Duration
}

// NewSSEHub creates a new SSE hub
func NewSSEHub(log *internal.Logger) *SSEHub {
	if log == nil {
		log = internal.DefaultLogger
	}
	return &SSEHub{
		clients:   make(map[string]map[chan Event]struct{}),
		log:       log,
		keepAlive: 30 * time.Second,
	}
}

// Subscribe registers a listener for id. The returned cancel function
// unregisters it and closes the channel; it is safe to call twice.
func (h *SSEHub) Subscribe(id string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.clients[id] == nil {
		h.clients[id] = make(map[chan Event]struct{})
	}
	h.clients[id][ch] = struct{}{}
	h.log.Debug("sse client registered for %s (total %d)", id, len(h.clients[id]))
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if clients, ok := h.clients[id]; ok {
				delete(clients, ch)
				if len(clients) == 0 {
					delete(h.clients, id)
				}
			}
			close(ch)
		})
	}
}

// Broadcast never blocks.
func (h *SSEHub) Broadcast(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients[ev.AssessmentID] {
		select {
		case ch <- ev:
		default:
			h.log.Debug("sse client for %s full, dropping %s event", ev.AssessmentID, ev.Type)
		}
	}
}

// Clients returns the number of listeners for id.
func (h *SSEHub) Clients(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[id])
}

// HandleSSE streams events for the assessment named by the :id path
// parameter until a terminal event arrives or the client goes away.
func (h *SSEHub) HandleSSE(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assessment id required"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, cancel := h.Subscribe(id)
	defer cancel()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return !ev.Terminal()
		case t := <-ticker.C:
			c.SSEvent("ping", gin.H{"timestamp": t.Format(time.RFC3339)})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
