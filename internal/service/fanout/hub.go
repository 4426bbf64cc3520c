package service_fanout

import (
	"sync"

	"github.com/humanbelnik/kinomatch/internal/model"
	"go.uber.org/zap"
)

const DefaultBuffer = 64

// Subscription receives the feed events of one session until Unsubscribe
// is called or the hub drops it for falling behind. Both close Events().
type Subscription struct {
	hub       *Hub
	sessionID model.SessionID
	events    chan model.FeedEvent
}

func (s *Subscription) Events() <-chan model.FeedEvent {
	return s.events
}

func (s *Subscription) SessionID() model.SessionID {
	return s.sessionID
}

func (s *Subscription) Unsubscribe() {
	s.hub.remove(s, "unsubscribed")
}

type Hub struct {
	mu       sync.Mutex
	sessions map[model.SessionID]map[*Subscription]struct{}
	buffer   int
	closed   bool
	logger   *zap.Logger
}

func New(logger *zap.Logger, buffer int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		sessions: make(map[model.SessionID]map[*Subscription]struct{}),
		buffer:   buffer,
		logger:   logger.Named("fanout"),
	}
}

func (h *Hub) Subscribe(sessionID model.SessionID) *Subscription {
	sub := &Subscription{
		hub:       h,
		sessionID: sessionID,
		events:    make(chan model.FeedEvent, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.events)
		return sub
	}
	if _, ok := h.sessions[sessionID]; !ok {
		h.sessions[sessionID] = make(map[*Subscription]struct{})
	}
	h.sessions[sessionID][sub] = struct{}{}

	h.logger.Debug("subscriber registered",
		zap.String("session_id", sessionID),
		zap.Int("subscribers", len(h.sessions[sessionID])),
	)
	return sub
}

// Publish hands the event to every subscriber of its session. Events of one
// session reach each subscriber in publish order. A subscriber with a full
// buffer is dropped instead of blocking the others.
func (h *Hub) Publish(event model.FeedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.sessions[event.SessionID] {
		select {
		case sub.events <- event:
		default:
			h.logger.Warn("dropping slow subscriber",
				zap.String("session_id", event.SessionID),
				zap.String("event", string(event.Type)),
			)
			h.removeLocked(sub)
		}
	}
}

func (h *Hub) Subscribers(sessionID model.SessionID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// Reset ends every subscription but keeps the hub open. Subscribers that
// come back read what they missed from the store.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for _, subs := range h.sessions {
		for sub := range subs {
			if h.removeLocked(sub) {
				dropped++
			}
		}
	}
	if dropped > 0 {
		h.logger.Info("subscribers reset", zap.Int("dropped", dropped))
	}
}

// Close ends every subscription. Later subscriptions are born closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, subs := range h.sessions {
		for sub := range subs {
			h.removeLocked(sub)
		}
	}
}

func (h *Hub) remove(sub *Subscription, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(sub) {
		h.logger.Debug("subscriber removed",
			zap.String("session_id", sub.sessionID),
			zap.String("reason", reason),
		)
	}
}

func (h *Hub) removeLocked(sub *Subscription) bool {
	subs, ok := h.sessions[sub.sessionID]
	if !ok {
		return false
	}
	if _, ok := subs[sub]; !ok {
		return false
	}

	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.sessions, sub.sessionID)
	}
	return true
}
