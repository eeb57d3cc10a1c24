// Package sse streams categorization run events to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event is one message broadcast to clients. ProjectID scopes the event;
// zero means every subscriber receives it.
type Event struct {
	Type      string `json:"type"`
	ProjectID int64  `json:"-"`
	Data      any    `json:"data"`
}

// Run event kinds.
const (
	RunCompleted     = "completed"
	RunPersistFailed = "persist_failed"
)

// RunEvent describes a finished categorization run.
type RunEvent struct {
	Kind              string `json:"-"`
	ProjectID         int64  `json:"project_id"`
	Source            string `json:"source"`
	KeywordCount      int    `json:"keyword_count"`
	DuplicatesRemoved int    `json:"duplicates_removed"`
	Failures          int    `json:"failures,omitempty"`
}

type subscription struct {
	ch      chan []byte
	project int64
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal loop owns the client set and the usage throttle
// timestamp; public methods talk to it over channels.
type Broker struct {
	usageMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	runEventCh    chan RunEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits usage.updated at most once per
// usageThrottle.
func NewBroker(usageThrottle time.Duration) *Broker {
	if usageThrottle <= 0 {
		usageThrottle = 2 * time.Second
	}

	b := &Broker{
		usageMin:      usageThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		runEventCh:    make(chan RunEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]int64)
	var lastUsage time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, project := range clients {
			if project != 0 && event.ProjectID != 0 && project != event.ProjectID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.project

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.runEventCh:
			broadcast(Event{Type: "categorization." + ev.Kind, ProjectID: ev.ProjectID, Data: ev})

			if ev.Kind != RunCompleted {
				continue
			}
			now := time.Now()
			if now.Sub(lastUsage) >= b.usageMin {
				lastUsage = now
				broadcast(Event{Type: "usage.updated", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client. A non-zero project limits delivery to events of
// that project and unscoped events.
func (b *Broker) Subscribe(project int64) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, project: project}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishRun broadcasts a run event plus a throttled usage.updated for
// completed runs.
func (b *Broker) PublishRun(ev RunEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.runEventCh <- ev:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events[?project=ID]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var project int64
	if p := r.URL.Query().Get("project"); p != "" {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid project", http.StatusBadRequest)
			return
		}
		project = id
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(project)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
