// Notification HTTP handlers.
//
// This file exposes the notification feed endpoints:
//   - GET    /notifications                (list, newest first, limit clamp)
//   - PUT    /notifications/:id/read       (monotonic mark-read)
//   - PUT    /notifications/read-all
//   - DELETE /notifications               (clear all; failures surface)
//   - GET    /notifications/:id/target     (resolved navigation path)
//   - GET    /notifications/stream         (SSE via a per-connection session cache)
//
// Handlers are transport-thin: they validate input, call the directory
// interface, and translate results into HTTP responses.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reefline/go-catchlog-backend/internal/domain"
	"github.com/reefline/go-catchlog-backend/internal/http/middleware"
	"github.com/reefline/go-catchlog-backend/internal/repo"
	"github.com/reefline/go-catchlog-backend/internal/route"
	"github.com/reefline/go-catchlog-backend/internal/services"
	"github.com/reefline/go-catchlog-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// NotificationDirectory defines the notification feed operations consumed by
// HTTP handlers. Implementations must be safe for concurrent use and honor
// the provided context.
type NotificationDirectory interface {
	// List returns the newest notifications for a user, capped at limit.
	List(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	// CountUnread returns the user's unread count.
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead flips one owned notification to read; idempotent.
	MarkRead(ctx context.Context, id, userID string, now time.Time) error
	// MarkAllRead flips every unread notification for a user.
	MarkAllRead(ctx context.Context, userID string, now time.Time) error
	// DeleteAll removes every notification for a user.
	DeleteAll(ctx context.Context, userID string) error
	// Get fetches one owned notification.
	Get(ctx context.Context, id, userID string) (*domain.Notification, error)
}

// CommentPoster posts comments behind the per-user action limiter.
type CommentPoster interface {
	Post(ctx context.Context, userID, catchID string, parentID *string, body string) (*domain.Comment, error)
}

// ReportSubmitter files abuse reports behind the per-user action limiter.
type ReportSubmitter interface {
	Submit(ctx context.Context, reporterID, targetType, targetID, reason string) (*domain.Report, error)
}

// NotificationSession is one user's live feed cache for the lifetime of a
// stream connection. Run merges push deliveries into the cache (forwarding
// merged rows to the session's insert callback), Refresh seeds it from the
// backend, and Close releases the push subscription.
type NotificationSession interface {
	Refresh(ctx context.Context) error
	Run(ctx context.Context)
	Close()
}

// SessionFactory opens a NotificationSession for userID. onInsert receives
// every push row the session cache accepts as new; rows the cache already
// holds are filtered out before they reach the callback.
type SessionFactory func(userID string, onInsert func(domain.Notification)) NotificationSession

// streamBuffer bounds the SSE emit queue between the session's delivery
// goroutine and a slow client.
const streamBuffer = 16

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for notifications and the gated write
// actions. It depends on abstract interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	notif    NotificationDirectory
	comments CommentPoster
	reports  ReportSubmitter
	sessions SessionFactory
	limit    int // default list size, also the bound of session caches
}

// New constructs a Handlers instance bound to the given collaborators.
// limit values below 1 fall back to 50.
func New(notif NotificationDirectory, comments CommentPoster, reports ReportSubmitter, sessions SessionFactory, limit int) *Handlers {
	if limit < 1 {
		limit = 50
	}
	return &Handlers{notif: notif, comments: comments, reports: reports, sessions: sessions, limit: limit}
}

// userID extracts the authenticated user id from the Gin context (set by
// upstream auth middleware), falling back to the X-User-ID header.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// requireUser resolves the caller's identity or fails the request with 401.
func requireUser(c *gin.Context) (string, bool) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "user identity required")
		return "", false
	}
	return uid, true
}

//
// DTOs
//

// ListNotificationsResponse wraps a page of notifications. UnreadCount is
// populated when the request asks for it (?unread=1). Each item carries its
// display type, which may differ from the stored type for replies.
type ListNotificationsResponse struct {
	Notifications []NotificationView `json:"notifications"`
	UnreadCount   *int64             `json:"unread_count,omitempty"`
}

// NotificationView is the wire shape of one notification.
type NotificationView struct {
	domain.Notification
	DisplayType domain.NotificationType `json:"display_type"`
}

// TargetResponse carries the resolved navigation path for a notification.
type TargetResponse struct {
	TargetPath string `json:"target_path"`
}

//
// Handlers
//

// ListNotifications returns the caller's newest notifications. The limit
// query param is clamped to [1, 100] with the configured default; pass
// ?unread=1 to include the unread count.
func (h *Handlers) ListNotifications(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	ctx := c.Request.Context()

	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), h.limit), 1, 100)
	items, err := h.notif.List(ctx, uid, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list notifications")
		return
	}

	views := make([]NotificationView, len(items))
	for i, n := range items {
		views[i] = NotificationView{Notification: n, DisplayType: n.DisplayType()}
	}
	resp := ListNotificationsResponse{Notifications: views}

	if c.Query("unread") == "1" {
		count, err := h.notif.CountUnread(ctx, uid)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not count unread")
			return
		}
		resp.UnreadCount = &count
	}
	ok(c, http.StatusOK, resp)
}

// MarkNotificationRead flips one notification to read. Marking an
// already-read notification is a success (idempotent); a notification owned
// by someone else is a 404.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	id := c.Param("id")

	err := h.notif.MarkRead(c.Request.Context(), id, uid, time.Now().UTC())
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not mark notification read")
	}
}

// MarkAllNotificationsRead flips every unread notification for the caller.
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	if err := h.notif.MarkAllRead(c.Request.Context(), uid, time.Now().UTC()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not mark notifications read")
		return
	}
	noContent(c)
}

// ClearNotifications deletes every notification for the caller. Unlike the
// other notification writes this failure is user-visible: the client must
// not believe data was deleted when it was not.
func (h *Handlers) ClearNotifications(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	if err := h.notif.DeleteAll(c.Request.Context(), uid); err != nil {
		fail(c, http.StatusBadGateway, ErrCodeClearFailed, "could not clear notifications")
		return
	}
	noContent(c)
}

// NotificationTarget resolves the navigation path for one notification.
// Returns 204 when the notification has no sensible destination.
func (h *Handlers) NotificationTarget(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}
	n, err := h.notif.Get(c.Request.Context(), c.Param("id"), uid)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load notification")
		return
	}

	path := route.ResolvePath(*n)
	if path == "" {
		noContent(c)
		return
	}
	ok(c, http.StatusOK, TargetResponse{TargetPath: path})
}

// StreamNotifications serves the caller's insert events as Server-Sent
// Events. Each connection owns a NotificationSession: the session seeds its
// cache from the backend, then merges push deliveries, so a row the cache
// already holds (seeded or previously pushed) is never emitted twice. The
// session is released when the client disconnects, so an abandoned tab
// stops consuming hub capacity.
func (h *Handlers) StreamNotifications(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	lg := middleware.LoggerFrom(c)

	events := make(chan domain.Notification, streamBuffer)
	sess := h.sessions(uid, func(n domain.Notification) {
		select {
		case events <- n:
		default:
			lg.Warn().Str("notification_id", n.ID).Msg("stream buffer full, event dropped")
		}
	})
	defer sess.Close()
	go sess.Run(c.Request.Context())

	if err := sess.Refresh(c.Request.Context()); err != nil {
		// The stream still serves pushes; only duplicate suppression
		// against pre-existing rows is degraded until a later merge.
		lg.Warn().Err(err).Msg("session seed failed, streaming pushes only")
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case n := <-events:
			payload, err := json.Marshal(NotificationView{Notification: n, DisplayType: n.DisplayType()})
			if err != nil {
				lg.Warn().Err(err).Str("notification_id", n.ID).Msg("stream encode failed")
				return true
			}
			c.SSEvent("notification", string(payload))
			return true
		}
	})
}

// gatedActionError maps service-layer errors from the gated write actions
// to HTTP responses, including the 429 contract for limited users.
func gatedActionError(c *gin.Context, err error) {
	var rle *services.RateLimitedError
	switch {
	case errors.As(err, &rle):
		seconds := int(rle.ResetIn.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.Header("X-RateLimit-Remaining", "0")
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, rle.Error())
	case errors.Is(err, services.ErrEmptyBody),
		errors.Is(err, services.ErrEmptyReason),
		errors.Is(err, services.ErrInvalidTarget):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrCatchNotFound),
		errors.Is(err, services.ErrCommentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "request failed")
	}
}
