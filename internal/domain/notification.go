// Package domain defines the persistence models for the catchlog backend.
// These types are mapped with GORM and shared across the repository and
// service layers.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NotificationType enumerates the closed set of notification kinds the
// backend will store. CommentReply is derived client-side from a NewComment
// row carrying a parent comment reference and is never persisted.
type NotificationType string

const (
	TypeNewFollower     NotificationType = "new_follower"
	TypeNewComment      NotificationType = "new_comment"
	TypeNewReaction     NotificationType = "new_reaction"
	TypeNewRating       NotificationType = "new_rating"
	TypeMention         NotificationType = "mention"
	TypeAdminReport     NotificationType = "admin_report"
	TypeAdminModeration NotificationType = "admin_moderation"
	TypeAdminWarning    NotificationType = "admin_warning"

	// TypeCommentReply is derived, not stored.
	TypeCommentReply NotificationType = "comment_reply"
)

// storableTypes is the set accepted at creation time.
var storableTypes = map[NotificationType]struct{}{
	TypeNewFollower:     {},
	TypeNewComment:      {},
	TypeNewReaction:     {},
	TypeNewRating:       {},
	TypeMention:         {},
	TypeAdminReport:     {},
	TypeAdminModeration: {},
	TypeAdminWarning:    {},
}

// Valid reports whether t may be persisted.
func (t NotificationType) Valid() bool {
	_, ok := storableTypes[t]
	return ok
}

// CatchContext reports whether t is rendered in the context of a catch
// (drives the router's catch/comment deep-link branch).
func (t NotificationType) CatchContext() bool {
	switch t {
	case TypeNewComment, TypeCommentReply, TypeMention, TypeNewReaction, TypeNewRating:
		return true
	}
	return false
}

var typeCaser = cases.Title(language.English)

// Title returns a humanized display title, e.g. "New Comment".
func (t NotificationType) Title() string {
	return typeCaser.String(strings.ReplaceAll(string(t), "_", " "))
}

// ExtraData is an open key-value payload carrying denormalized fields
// (catch_id, comment_id, actor_username, action, ...) used when the primary
// foreign keys are absent. It is stored as a JSON TEXT column; a NULL or
// malformed column scans to nil rather than failing.
type ExtraData map[string]any

// Value implements driver.Valuer. A nil map stores SQL NULL.
func (e ExtraData) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Unparseable payloads degrade to nil so a bad
// row can never crash a consumer.
func (e *ExtraData) Scan(src any) error {
	if src == nil {
		*e = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("extra_data: unsupported column type")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		*e = nil
		return nil
	}
	*e = m
	return nil
}

// String returns the value under key when it is a string; ok is false for a
// missing key, a nil map, or a non-string value. All extra-data reads go
// through this guard so wrong-typed payloads degrade instead of panicking.
func (e ExtraData) String(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// FirstString returns the value of the first key present with a non-empty
// string value, in the order given.
func (e ExtraData) FirstString(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := e.String(k); ok {
			return s, true
		}
	}
	return "", false
}

// Notification represents one row in a user's notification feed.
//
// Read-state is monotonic: IsRead transitions false->true exactly once and
// ReadAt is set on that first transition, never cleared or overwritten.
// DedupeKey is a hash of the logical event tuple bucketed by the dedupe
// window; the unique index makes rapid duplicate creates collapse into one
// stored row (the conflict is a success path, not an error).
type Notification struct {
	ID        string           `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string           `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_notifs,priority:1"`
	ActorID   *string          `json:"actor_id,omitempty"   gorm:"type:varchar(64)"`
	Type      NotificationType `json:"type"       gorm:"type:varchar(32);not null;index"`
	CatchID   *string          `json:"catch_id,omitempty"   gorm:"type:char(36)"`
	CommentID *string          `json:"comment_id,omitempty" gorm:"type:char(36)"`
	ExtraData ExtraData        `json:"extra_data,omitempty" gorm:"type:text"`
	Message   string           `json:"message"    gorm:"type:text;not null"`
	IsRead    bool             `json:"is_read"    gorm:"not null;default:false;index"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	DedupeKey string           `json:"-"          gorm:"type:char(40);not null;uniqueIndex:ux_notif_dedupe"`
	CreatedAt time.Time        `json:"created_at" gorm:"index:idx_user_notifs,priority:2,sort:desc"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// DisplayType returns the client-facing type: a NewComment row that carries a
// parent comment reference renders as a reply.
func (n Notification) DisplayType() NotificationType {
	if n.Type == TypeNewComment {
		if _, ok := n.ExtraData.FirstString("parent_comment_id", "parentCommentId"); ok {
			return TypeCommentReply
		}
	}
	return n.Type
}
