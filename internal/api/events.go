package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	subscriberBuffer  = 16
	heartbeatInterval = 15 * time.Second
)

// Event is one verdict as delivered to stream subscribers. Seq increases by
// one per published event and is sent as the SSE id.
type Event struct {
	Seq  uint64
	Data []byte
}

// EventHub fans verdict events out to live subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the event, and the miss
// is counted.
type EventHub struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	seq     uint64
	dropped uint64
	closed  bool
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns the event channel and a function that detaches it. The
// channel is closed on detach or when the hub closes.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *EventHub) Publish(data []byte) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return h.seq
	}

	h.seq++
	ev := Event{Seq: h.seq, Data: data}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
	return h.seq
}

// Dropped is the number of deliveries skipped because a subscriber was full.
func (h *EventHub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches every subscriber. Later Subscribe calls get a closed channel.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (s *Server) events(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	fmt.Fprint(w, ": connected\n\n")
	w.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			w.Flush()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "id: %s\nevent: verdict\n", strconv.FormatUint(ev.Seq, 10))
			for _, line := range strings.Split(string(ev.Data), "\n") {
				fmt.Fprintf(w, "data: %s\n", line)
			}
			fmt.Fprint(w, "\n")
			w.Flush()
		}
	}
}
