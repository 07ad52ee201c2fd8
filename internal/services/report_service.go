package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/reefline/go-catchlog-backend/internal/domain"
	"github.com/reefline/go-catchlog-backend/internal/ratelimit"
	"github.com/reefline/go-catchlog-backend/internal/repo"
)

// ReportService files abuse reports behind a per-user sliding-window limit
// and fans an admin_report notification out to every admin. The report row
// is the source of truth; admin notifications are best effort.
type ReportService struct {
	DB       *gorm.DB
	Limiters *ratelimit.Registry
	Notifier *NotificationService
	Admins   *AdminCache
}

// limiter returns the shared per-user window for the report-submit action
// class.
func (s *ReportService) limiter(reporterID string) *ratelimit.Limiter {
	return s.Limiters.Get("report-submit:" + reporterID)
}

// Submit validates and inserts a report by reporterID against a catch or
// comment. A limited reporter gets ErrRateLimited with the reset hint
// before any write happens.
func (s *ReportService) Submit(ctx context.Context, reporterID, targetType, targetID, reason string) (*domain.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	switch targetType {
	case domain.ReportTargetCatch:
		if _, err := repo.GetCatch(ctx, s.DB, targetID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrCatchNotFound
			}
			return nil, err
		}
	case domain.ReportTargetComment:
		if _, err := repo.GetComment(ctx, s.DB, targetID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrCommentNotFound
			}
			return nil, err
		}
	default:
		return nil, ErrInvalidTarget
	}

	lim := s.limiter(reporterID)
	if !lim.Allow() {
		return nil, &RateLimitedError{Action: "report-submit", ResetIn: lim.ResetIn()}
	}

	report, err := repo.CreateReport(ctx, s.DB, reporterID, targetType, targetID, reason)
	if err != nil {
		return nil, err
	}

	s.notifyAdmins(ctx, report)
	return report, nil
}

// notifyAdmins fans the new report out to every admin, skipping a reporter
// who is themselves an admin. Lookup failure only costs the fan-out.
func (s *ReportService) notifyAdmins(ctx context.Context, r *domain.Report) {
	ids, err := s.Admins.AdminIDs(ctx)
	if err != nil {
		log.Warn().Err(err).Str("report_id", r.ID).Msg("admin lookup failed, skipping report fan-out")
		return
	}
	for _, adminID := range ids {
		if adminID == r.ReporterID {
			continue
		}
		s.Notifier.Create(ctx, CreateInput{
			UserID:  adminID,
			ActorID: &r.ReporterID,
			Type:    domain.TypeAdminReport,
			Message: "New " + r.TargetType + " report awaiting review",
			ExtraData: map[string]any{
				"report_id":   r.ID,
				"target_type": r.TargetType,
				"target_id":   r.TargetID,
			},
		})
	}
}
