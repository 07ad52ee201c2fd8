package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/reefline/go-catchlog-backend/internal/domain"
	"github.com/reefline/go-catchlog-backend/internal/ratelimit"
	"github.com/reefline/go-catchlog-backend/internal/repo"
)

// mentionPattern matches @username tokens in a comment body. Usernames are
// word characters, dots and dashes, matching the profile username charset.
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_][A-Za-z0-9_.-]*)`)

// CommentService posts comments behind a per-user sliding-window limit and
// fans out the engagement notifications a new comment triggers. The comment
// insert is the source of truth; every notification is best effort.
type CommentService struct {
	DB       *gorm.DB
	Limiters *ratelimit.Registry
	Notifier *NotificationService
}

// limiter returns the shared per-user window for the comment-post action
// class. One limiter per key, so concurrent posts by the same user contend
// on the same window instead of racing separate copies of it.
func (s *CommentService) limiter(userID string) *ratelimit.Limiter {
	return s.Limiters.Get("comment-post:" + userID)
}

// Post validates and inserts a comment for userID on catchID, optionally as
// a reply to parentID. A limited user gets ErrRateLimited (carrying the
// reset hint) before any write happens. Notification fan-out runs after the
// insert and never fails the post.
func (s *CommentService) Post(ctx context.Context, userID, catchID string, parentID *string, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}

	catch, err := repo.GetCatch(ctx, s.DB, catchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCatchNotFound
		}
		return nil, err
	}

	var parent *domain.Comment
	if parentID != nil && *parentID != "" {
		parent, err = repo.GetComment(ctx, s.DB, *parentID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrCommentNotFound
			}
			return nil, err
		}
		if parent.CatchID != catchID {
			return nil, ErrCommentNotFound
		}
	}

	lim := s.limiter(userID)
	if !lim.Allow() {
		return nil, &RateLimitedError{Action: "comment-post", ResetIn: lim.ResetIn()}
	}

	comment, err := repo.CreateComment(ctx, s.DB, catchID, userID, parentID, body)
	if err != nil {
		return nil, err
	}

	s.notifyCommentTargets(ctx, comment, catch, parent)
	return comment, nil
}

// notifyCommentTargets addresses the catch owner (or the parent comment's
// author for a reply) plus every @mentioned profile. The recipient set is
// deduplicated and never includes the commenter themselves.
func (s *CommentService) notifyCommentTargets(ctx context.Context, c *domain.Comment, catch *domain.Catch, parent *domain.Comment) {
	actor, err := repo.GetProfile(ctx, s.DB, c.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", c.UserID).Msg("comment actor profile unavailable, skipping fan-out")
		return
	}

	notified := map[string]bool{c.UserID: true}

	if parent != nil {
		if !notified[parent.UserID] {
			notified[parent.UserID] = true
			s.Notifier.Create(ctx, CreateInput{
				UserID:    parent.UserID,
				ActorID:   &c.UserID,
				Type:      domain.TypeNewComment,
				Message:   actor.Username + " replied to your comment",
				CatchID:   &c.CatchID,
				CommentID: &c.ID,
				ExtraData: map[string]any{
					"actor_username":    actor.Username,
					"parent_comment_id": parent.ID,
				},
			})
		}
	} else if !notified[catch.UserID] {
		notified[catch.UserID] = true
		s.Notifier.Create(ctx, CreateInput{
			UserID:    catch.UserID,
			ActorID:   &c.UserID,
			Type:      domain.TypeNewComment,
			Message:   actor.Username + " commented on your catch",
			CatchID:   &c.CatchID,
			CommentID: &c.ID,
			ExtraData: map[string]any{"actor_username": actor.Username},
		})
	}

	for _, username := range mentionedUsernames(c.Body) {
		p, err := repo.GetProfileByUsername(ctx, s.DB, username)
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				log.Warn().Err(err).Str("username", username).Msg("mention lookup failed")
			}
			continue
		}
		if notified[p.ID] {
			continue
		}
		notified[p.ID] = true
		s.Notifier.Create(ctx, CreateInput{
			UserID:    p.ID,
			ActorID:   &c.UserID,
			Type:      domain.TypeMention,
			Message:   actor.Username + " mentioned you in a comment",
			CatchID:   &c.CatchID,
			CommentID: &c.ID,
			ExtraData: map[string]any{"actor_username": actor.Username},
		})
	}
}

// mentionedUsernames extracts the distinct @username tokens from a body,
// in order of first appearance.
func mentionedUsernames(body string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
