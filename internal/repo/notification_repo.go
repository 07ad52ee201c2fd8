// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model, including dedupe-keyed creation and the monotonic
// read-state transitions.
package repo

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reefline/go-catchlog-backend/internal/domain"
)

// DedupeKey derives the idempotency key for one logical notification event.
// The tuple (userID, type, actorID, catchID, commentID) is bucketed by
// truncating the creation instant to the dedupe window, so two identical
// events inside the same bucket collapse onto the same unique-indexed key.
// Each field is length-prefixed before hashing, so field boundaries are
// unambiguous and distinct tuples cannot collide by shifting bytes across a
// separator.
func DedupeKey(userID string, typ domain.NotificationType, actorID, catchID, commentID *string, at time.Time, window time.Duration) string {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	bucket := at.UTC().Truncate(window).Unix()

	var b strings.Builder
	for _, f := range []string{
		userID, string(typ), deref(actorID), deref(catchID), deref(commentID),
		strconv.FormatInt(bucket, 10),
	} {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// CreateNotification inserts a notification row, deduplicated by the
// window-bucketed key. Returns ErrDuplicate when an identical logical event
// was already stored inside the current dedupe window.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification, window time.Duration) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.DedupeKey == "" {
		n.DedupeKey = DedupeKey(n.UserID, n.Type, n.ActorID, n.CatchID, n.CommentID, n.CreatedAt, window)
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListNotifications returns the newest rows for a user, newest first,
// capped at limit.
func ListNotifications(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountUnread returns the number of unread rows for a user.
func CountUnread(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkRead flips one notification to read, scoped to its owner. The update
// is guarded by is_read = false so read_at is written exactly once; marking
// an already-read row is a no-op, not an error (idempotent retry).
func MarkRead(ctx context.Context, db *gorm.DB, id, userID string, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either already read (fine) or not this user's row.
		var count int64
		if err := db.WithContext(ctx).Model(&domain.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// MarkAllRead flips every unread row for a user; read_at is only written on
// rows making the false->true transition.
func MarkAllRead(ctx context.Context, db *gorm.DB, userID string, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now.UTC()}).Error
}

// DeleteAllNotifications removes every row for a user. All-or-nothing from
// the caller's perspective: an error means nothing is known to be deleted.
func DeleteAllNotifications(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.Notification{}).Error
}

// GetNotification fetches one row by id scoped to its owner.
func GetNotification(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}
