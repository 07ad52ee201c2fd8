// Package route maps a notification record to the client destination it
// should navigate to. ResolvePath is a pure, total function — no I/O, no
// side effects — shared by click navigation and server-triggered redirects.
package route

import (
	"net/url"

	"github.com/reefline/go-catchlog-backend/internal/domain"
)

// Fixed destinations.
const (
	adminReportsPath  = "/admin/reports"
	notificationsFrag = "#notifications"
	catchPathPrefix   = "/catch/"
	profilePathPrefix = "/profile/"
	commentQueryParam = "commentId"
)

// ResolvePath resolves the destination path for a notification, or "" when
// it has no navigable target (callers suppress the click affordance).
//
// Resolution order, first match wins:
//  1. admin_report        -> the admin reports queue, unconditionally
//  2. admin_moderation    -> own profile (clear_moderation), else the
//     referenced catch, else own profile
//  3. admin_warning       -> own profile with notifications anchor
//  4. catch-context types -> catch detail, deep-linked to the comment when
//     one is referenced; without a catch reference fall through to 5
//  5. any actor           -> the actor's profile (username preferred)
//  6. none of the above   -> ""
//
// Extra data is consulted only through typed guards, so absent or malformed
// payloads degrade down the fallback chain instead of panicking.
func ResolvePath(n domain.Notification) string {
	switch n.Type {
	case domain.TypeAdminReport:
		return adminReportsPath

	case domain.TypeAdminModeration:
		if action, ok := n.ExtraData.String("action"); ok && action == "clear_moderation" {
			return ownProfilePath(n) + notificationsFrag
		}
		if catchID, ok := catchRef(n); ok {
			return catchPathPrefix + url.PathEscape(catchID)
		}
		return ownProfilePath(n)

	case domain.TypeAdminWarning:
		// A warning always lands on the recipient's own notifications,
		// regardless of any catch reference the payload carries.
		return ownProfilePath(n) + notificationsFrag
	}

	if n.Type.CatchContext() {
		if catchID, ok := catchRef(n); ok {
			p := catchPathPrefix + url.PathEscape(catchID)
			if commentID, ok := commentRef(n); ok {
				p += "?" + commentQueryParam + "=" + url.QueryEscape(commentID)
			}
			return p
		}
		// No catch reference: fall through to the actor branch.
	}

	if n.ActorID != nil && *n.ActorID != "" {
		// A username path survives renames better than an id redirect that
		// must be re-resolved, so prefer the denormalized username.
		if username, ok := n.ExtraData.String("actor_username"); ok {
			return profilePathPrefix + url.PathEscape(username)
		}
		return profilePathPrefix + url.PathEscape(*n.ActorID)
	}

	return ""
}

// catchRef resolves the catch reference, preferring the direct field over
// the denormalized extra-data aliases.
func catchRef(n domain.Notification) (string, bool) {
	if n.CatchID != nil && *n.CatchID != "" {
		return *n.CatchID, true
	}
	return n.ExtraData.FirstString("catch_id", "catchId")
}

// commentRef resolves the comment reference the same way.
func commentRef(n domain.Notification) (string, bool) {
	if n.CommentID != nil && *n.CommentID != "" {
		return *n.CommentID, true
	}
	return n.ExtraData.FirstString("comment_id", "commentId")
}

// ownProfilePath builds the recipient's profile path, preferring a
// denormalized username over the raw user id.
func ownProfilePath(n domain.Notification) string {
	if username, ok := n.ExtraData.String("recipient_username"); ok {
		return profilePathPrefix + url.PathEscape(username)
	}
	return profilePathPrefix + url.PathEscape(n.UserID)
}
