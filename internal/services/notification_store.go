// Package services – NotificationStore
//
// NotificationStore is the per-session cache of a user's notification feed.
// Exactly one instance exists per authenticated session; it owns a push
// subscription for the session's lifetime and merges push-delivered inserts
// with refreshes and optimistic read-state transitions.
//
// Consistency model:
//   - Read state is optimistic and never rolled back: a failed backend mark
//     only costs eventual consistency of a low-stakes flag, and a retried
//     mark is idempotent.
//   - A push insert for an id already cached is a no-op, so a push racing a
//     refresh can never duplicate a row or revert a locally read flag.
//   - Refresh completions are guarded by a fetch sequence and a cache
//     version; a completion that lost the race to a newer refresh or to any
//     mutation is discarded rather than applied over fresher state.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/reefline/go-catchlog-backend/internal/domain"
	"github.com/reefline/go-catchlog-backend/internal/push"
	"github.com/reefline/go-catchlog-backend/internal/repo"
)

// NotificationStore caches one user's notifications, newest first, bounded
// at a fixed limit. All methods are safe for concurrent use.
type NotificationStore struct {
	db     *gorm.DB
	userID string
	limit  int
	sub    *push.Subscription
	now    func() time.Time

	// OnInsert, when set before Run starts, is invoked after a push row is
	// merged into the cache. A push the cache rejected as already present
	// is not forwarded. Called from the Run goroutine.
	OnInsert func(n domain.Notification)

	mu       sync.Mutex
	items    []domain.Notification
	loading  bool
	version  uint64 // bumped on every cache mutation
	fetchSeq uint64 // issue number of the newest Refresh
}

// NewNotificationStore builds the session cache and acquires the user's
// push subscription. The caller runs the delivery loop via Run and must
// release the subscription with Close on teardown.
func NewNotificationStore(db *gorm.DB, hub *push.Hub, userID string, limit int) *NotificationStore {
	if limit < 1 {
		limit = 50
	}
	return &NotificationStore{
		db:     db,
		userID: userID,
		limit:  limit,
		sub:    hub.Subscribe(userID),
		now:    time.Now,
	}
}

// Run consumes push-delivered inserts until the subscription is released or
// ctx is canceled. Intended to be run on its own goroutine by the session
// owner.
func (s *NotificationStore) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case n, ok := <-s.sub.C():
			if !ok {
				return
			}
			if s.ApplyInsert(n) && s.OnInsert != nil {
				s.OnInsert(n)
			}
		}
	}
}

// Close releases the push subscription. Idempotent; after Close no further
// pushes reach the cache.
func (s *NotificationStore) Close() { s.sub.Close() }

// Notifications returns a copy of the cached rows, newest first.
func (s *NotificationStore) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Loading reports whether a refresh is in flight.
func (s *NotificationStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// UnreadCount returns the number of cached unread rows.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.items {
		if !s.items[i].IsRead {
			n++
		}
	}
	return n
}

// Refresh reloads the cache from the backend. Safe to call concurrently
// with itself: each call takes a fetch sequence number at issue time and a
// completion only applies when no newer refresh was issued and no mutation
// (push insert, mark, clear) touched the cache while the fetch was in
// flight. Stale completions are discarded, never merged.
func (s *NotificationStore) Refresh(ctx context.Context) error {
	tr := otel.Tracer("services/NotificationStore")
	ctx, span := tr.Start(ctx, "Refresh",
		trace.WithAttributes(attribute.String("user.id", s.userID)))
	defer span.End()

	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	issuedAt := s.version
	s.loading = true
	s.mu.Unlock()

	rows, err := repo.ListNotifications(ctx, s.db, s.userID, s.limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.fetchSeq {
		s.loading = false
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", s.userID).Msg("notification refresh failed")
		return err
	}
	if seq != s.fetchSeq || issuedAt != s.version {
		// Superseded by a newer refresh, or a push/mark/clear landed after
		// this fetch was issued. Its rows may be stale; drop them.
		return nil
	}
	s.items = rows
	s.version++
	return nil
}

// ApplyInsert merges one push-delivered row into the cache and reports
// whether the row was new. An id already present is left untouched: order
// preserved, and a stale is_read=false from the wire never reverts a local
// optimistic read. A new row is prepended and the cache truncated to its
// bound.
func (s *NotificationStore) ApplyInsert(n domain.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == n.ID {
			return false
		}
	}

	s.items = append([]domain.Notification{n}, s.items...)
	if len(s.items) > s.limit {
		s.items = s.items[:s.limit]
	}
	s.version++
	return true
}

// MarkOne flips a cached notification to read optimistically, then issues
// the backend write. The local flip is never rolled back on backend
// failure; the flag is eventually consistent and a retried mark is
// idempotent.
func (s *NotificationStore) MarkOne(ctx context.Context, id string) {
	now := s.now().UTC()

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].IsRead {
				s.items[i].IsRead = true
				s.items[i].ReadAt = &now
				s.version++
			}
			break
		}
	}
	s.mu.Unlock()

	if err := repo.MarkRead(ctx, s.db, id, s.userID, now); err != nil {
		log.Warn().Err(err).
			Str("user_id", s.userID).
			Str("notification_id", id).
			Msg("mark read not persisted")
	}
}

// MarkAll flips every cached notification to read optimistically, then
// issues the backend write; same no-rollback contract as MarkOne.
func (s *NotificationStore) MarkAll(ctx context.Context) {
	now := s.now().UTC()

	s.mu.Lock()
	changed := false
	for i := range s.items {
		if !s.items[i].IsRead {
			s.items[i].IsRead = true
			s.items[i].ReadAt = &now
			changed = true
		}
	}
	if changed {
		s.version++
	}
	s.mu.Unlock()

	if err := repo.MarkAllRead(ctx, s.db, s.userID, now); err != nil {
		log.Warn().Err(err).Str("user_id", s.userID).Msg("mark all read not persisted")
	}
}

// ClearAll deletes every notification for the user, backend first. On
// backend failure the cache is left untouched and the error is surfaced:
// this is the one operation where silent failure would mislead the user
// into believing their data was deleted.
func (s *NotificationStore) ClearAll(ctx context.Context) error {
	if err := repo.DeleteAllNotifications(ctx, s.db, s.userID); err != nil {
		log.Error().Err(err).Str("user_id", s.userID).Msg("notification clear failed")
		return fmt.Errorf("%w: %v", ErrClearFailed, err)
	}

	s.mu.Lock()
	s.items = nil
	s.version++
	s.mu.Unlock()
	return nil
}
