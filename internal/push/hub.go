// Package push delivers freshly inserted notifications to standing per-user
// subscriptions, independent of client-initiated refresh. The hub is the
// in-process analogue of a realtime row-insert channel: NotificationService
// publishes after every successful insert, and each authenticated session
// holds one subscription that it must release on teardown.
package push

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/reefline/go-catchlog-backend/internal/domain"
)

// subscriptionBuffer sizes each subscription channel. Delivery is
// non-blocking: a consumer that falls this far behind loses events and will
// converge on its next refresh.
const subscriptionBuffer = 16

// Subscription is one receiver of a user's insert events. Close releases it;
// Close is idempotent and safe to call concurrently with delivery.
type Subscription struct {
	userID string
	id     string
	ch     chan domain.Notification
	hub    *Hub
	once   sync.Once
}

// C returns the event channel. It is closed when the subscription is
// released or the hub shuts down.
func (s *Subscription) C() <-chan domain.Notification { return s.ch }

// Close releases the subscription. No events are delivered after Close
// returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub fans notification inserts out to per-user subscriptions. Safe for
// concurrent use.
type Hub struct {
	// OnDrop, when set, is invoked once per event dropped on a full
	// subscription. Set before first Publish; used to feed a metrics counter.
	OnDrop func()

	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription // userID -> subID -> sub
	closed bool
	nextID int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[string]*Subscription)}
}

// Subscribe registers a new subscription for userID's insert events. On a
// closed hub it returns an already-released subscription whose channel is
// closed, so callers need no special shutdown handling.
func (h *Hub) Subscribe(userID string) *Subscription {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s := &Subscription{userID: userID, ch: make(chan domain.Notification), hub: h}
		s.once.Do(func() { close(s.ch) })
		return s
	}
	h.nextID++
	s := &Subscription{
		userID: userID,
		id:     strconv.Itoa(h.nextID),
		ch:     make(chan domain.Notification, subscriptionBuffer),
		hub:    h,
	}
	if _, ok := h.subs[userID]; !ok {
		h.subs[userID] = make(map[string]*Subscription)
	}
	h.subs[userID][s.id] = s
	h.mu.Unlock()
	return s
}

// Publish delivers n to every subscription of its recipient. Sends never
// block: a full subscription drops the event with a warning.
func (h *Hub) Publish(n domain.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, s := range h.subs[n.UserID] {
		select {
		case s.ch <- n:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
			log.Warn().
				Str("user_id", n.UserID).
				Str("notification_id", n.ID).
				Msg("push subscription full, event dropped")
		}
	}
}

// Close shuts the hub down and releases every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := h.subs
	h.subs = make(map[string]map[string]*Subscription)
	h.mu.Unlock()

	for _, perUser := range all {
		for _, s := range perUser {
			s.once.Do(func() { close(s.ch) })
		}
	}
}

// remove detaches s from the hub's registry.
func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if perUser, ok := h.subs[s.userID]; ok {
		delete(perUser, s.id)
		if len(perUser) == 0 {
			delete(h.subs, s.userID)
		}
	}
}
