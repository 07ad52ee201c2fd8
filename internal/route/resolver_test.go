package route

import (
	"testing"

	"github.com/reefline/go-catchlog-backend/internal/domain"
)

func strptr(s string) *string { return &s }

func TestResolvePath_AdminReportShortCircuits(t *testing.T) {
	n := domain.Notification{
		Type:    domain.TypeAdminReport,
		UserID:  "admin1",
		ActorID: strptr("u1"),
		CatchID: strptr("c1"),
	}
	if got := ResolvePath(n); got != "/admin/reports" {
		t.Fatalf("got %q, want /admin/reports", got)
	}
}

func TestResolvePath_AdminModeration(t *testing.T) {
	cases := []struct {
		name string
		n    domain.Notification
		want string
	}{
		{
			name: "clear action wins over catch ref",
			n: domain.Notification{
				Type: domain.TypeAdminModeration, UserID: "u1",
				CatchID:   strptr("c1"),
				ExtraData: domain.ExtraData{"action": "clear_moderation", "recipient_username": "jack"},
			},
			want: "/profile/jack#notifications",
		},
		{
			name: "catch ref from direct field",
			n: domain.Notification{
				Type: domain.TypeAdminModeration, UserID: "u1", CatchID: strptr("c9"),
			},
			want: "/catch/c9",
		},
		{
			name: "catch ref from extra data alias",
			n: domain.Notification{
				Type: domain.TypeAdminModeration, UserID: "u1",
				ExtraData: domain.ExtraData{"catch_id": "c42"},
			},
			want: "/catch/c42",
		},
		{
			name: "plain moderation falls back to own profile, no anchor",
			n:    domain.Notification{Type: domain.TypeAdminModeration, UserID: "u1"},
			want: "/profile/u1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolvePath(tc.n); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolvePath_AdminWarningIgnoresCatch(t *testing.T) {
	n := domain.Notification{
		Type: domain.TypeAdminWarning, UserID: "u1",
		CatchID:   strptr("c1"),
		ExtraData: domain.ExtraData{"catch_id": "c2"},
	}
	if got := ResolvePath(n); got != "/profile/u1#notifications" {
		t.Fatalf("got %q, want own profile with anchor", got)
	}
}

func TestResolvePath_CatchContext(t *testing.T) {
	cases := []struct {
		name string
		n    domain.Notification
		want string
	}{
		{
			name: "comment deep link from extra data",
			n: domain.Notification{
				Type: domain.TypeNewComment, UserID: "u1",
				ExtraData: domain.ExtraData{"catch_id": "c42", "comment_id": "k9"},
			},
			want: "/catch/c42?commentId=k9",
		},
		{
			name: "direct field preferred over alias",
			n: domain.Notification{
				Type: domain.TypeNewRating, UserID: "u1",
				CatchID:   strptr("c1"),
				ExtraData: domain.ExtraData{"catch_id": "c-stale"},
			},
			want: "/catch/c1",
		},
		{
			name: "bare catch when no comment ref",
			n: domain.Notification{
				Type: domain.TypeNewReaction, UserID: "u1", CatchID: strptr("c3"),
			},
			want: "/catch/c3",
		},
		{
			name: "camelCase aliases accepted",
			n: domain.Notification{
				Type: domain.TypeMention, UserID: "u1",
				ExtraData: domain.ExtraData{"catchId": "c7", "commentId": "k1"},
			},
			want: "/catch/c7?commentId=k1",
		},
		{
			name: "no catch ref falls through to actor profile",
			n: domain.Notification{
				Type: domain.TypeNewComment, UserID: "u1",
				ActorID:   strptr("u7"),
				ExtraData: domain.ExtraData{"actor_username": "angler_jane"},
			},
			want: "/profile/angler_jane",
		},
		{
			name: "nothing resolvable returns empty",
			n: domain.Notification{
				Type: domain.TypeNewComment, UserID: "u1",
				ExtraData: domain.ExtraData{},
			},
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolvePath(tc.n); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolvePath_ActorFallback(t *testing.T) {
	n := domain.Notification{
		Type: domain.TypeNewFollower, UserID: "u1",
		ActorID:   strptr("u7"),
		ExtraData: domain.ExtraData{"actor_username": "angler_jane"},
	}
	if got := ResolvePath(n); got != "/profile/angler_jane" {
		t.Fatalf("got %q, want username profile", got)
	}

	n.ExtraData = nil
	if got := ResolvePath(n); got != "/profile/u7" {
		t.Fatalf("got %q, want id profile fallback", got)
	}
}

func TestResolvePath_MalformedExtraDataNeverPanics(t *testing.T) {
	bad := domain.ExtraData{
		"catch_id":       42.0,
		"comment_id":     []any{"k1"},
		"actor_username": map[string]any{},
		"action":         7.5,
	}
	for _, typ := range []domain.NotificationType{
		domain.TypeNewComment, domain.TypeAdminModeration,
		domain.TypeAdminWarning, domain.TypeNewFollower, domain.TypeMention,
	} {
		n := domain.Notification{Type: typ, UserID: "u1", ExtraData: bad}
		_ = ResolvePath(n) // must not panic; value checked where meaningful
	}

	// Wrong-typed catch ref with an actor present: resolves to the actor.
	n := domain.Notification{
		Type: domain.TypeNewComment, UserID: "u1",
		ActorID: strptr("u9"), ExtraData: bad,
	}
	if got := ResolvePath(n); got != "/profile/u9" {
		t.Fatalf("got %q, want actor id fallback", got)
	}
}

func TestResolvePath_NoTarget(t *testing.T) {
	n := domain.Notification{Type: domain.TypeNewFollower, UserID: "u1"}
	if got := ResolvePath(n); got != "" {
		t.Fatalf("got %q, want empty (suppress click)", got)
	}
}
