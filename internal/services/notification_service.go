// Package services – NotificationService
//
// NotificationService is the single entry point for creating notifications.
// Creation is strictly best-effort relative to the primary user action that
// triggered it: a comment must land even when notifying the catch owner
// fails. The service therefore validates silently, treats the dedupe-window
// conflict as success, and swallows backend failures after logging them with
// context. Successful inserts are published to the push hub for realtime
// delivery.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
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

// Publisher delivers a stored notification to live subscribers. *push.Hub
// satisfies it; tests may substitute a recorder.
type Publisher interface {
	Publish(n domain.Notification)
}

// NotificationService creates deduplicated notifications and fans them out.
type NotificationService struct {
	DB           *gorm.DB
	Hub          Publisher
	DedupeWindow time.Duration
}

// CreateInput describes one notification to ensure exists.
type CreateInput struct {
	UserID    string                  // recipient; required
	ActorID   *string                 // originator; nil for system events
	Type      domain.NotificationType // required, must be storable
	Message   string                  // required, non-blank
	CatchID   *string
	CommentID *string
	ExtraData map[string]any // plain data only; dropped if unserializable
}

// Create ensures the described notification exists. It returns the stored
// row, or nil when the input was skipped, deduplicated, or the backend
// failed — callers never branch on notification failure, so no error is
// returned. Callers may conditionally build payloads; invalid input is a
// silent no-op by design, not a bug to surface.
func (s *NotificationService) Create(ctx context.Context, in CreateInput) *domain.Notification {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("notification.type", string(in.Type)),
			attribute.String("user.id", in.UserID),
		),
	)
	defer span.End()

	// Local rejection: no backend call, no error.
	if in.UserID == "" || !in.Type.Valid() || strings.TrimSpace(in.Message) == "" {
		return nil
	}

	n := &domain.Notification{
		UserID:    in.UserID,
		ActorID:   in.ActorID,
		Type:      in.Type,
		CatchID:   in.CatchID,
		CommentID: in.CommentID,
		Message:   in.Message,
		ExtraData: sanitizeExtra(in.UserID, in.Type, in.ExtraData),
	}

	err := repo.CreateNotification(ctx, s.DB, n, s.dedupeWindow())
	switch {
	case err == nil:
		if s.Hub != nil {
			s.Hub.Publish(*n)
		}
		return n
	case errors.Is(err, repo.ErrDuplicate):
		// The caller's intent — "this notification exists" — is already
		// satisfied by the earlier row.
		log.Debug().
			Str("user_id", in.UserID).
			Str("type", string(in.Type)).
			Msg("notification deduplicated")
		return nil
	default:
		log.Error().Err(err).
			Str("user_id", in.UserID).
			Str("type", string(in.Type)).
			Msg("notification create failed")
		return nil
	}
}

// sanitizeExtra verifies the payload is plain serializable data. A payload
// that cannot be marshaled (function values, cycles) is logged and dropped;
// the notification is still created without it.
func sanitizeExtra(userID string, typ domain.NotificationType, extra map[string]any) domain.ExtraData {
	if len(extra) == 0 {
		return nil
	}
	if _, err := json.Marshal(extra); err != nil {
		log.Warn().Err(err).
			Str("user_id", userID).
			Str("type", string(typ)).
			Msg("extra data not serializable, dropped")
		return nil
	}
	return domain.ExtraData(extra)
}

// dedupeWindow returns the configured window with a safe default.
func (s *NotificationService) dedupeWindow() time.Duration {
	if s.DedupeWindow > 0 {
		return s.DedupeWindow
	}
	return time.Minute
}

var _ Publisher = (*push.Hub)(nil)
