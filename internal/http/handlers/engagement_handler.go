// Gated write-action HTTP handlers.
//
// This file exposes the abuse-prone writes that sit behind the per-user
// sliding-window limits:
//   - POST /catches/:id/comments
//   - POST /reports
//
// A limited user receives 429 with Retry-After so clients can render the
// cooldown instead of retrying blindly.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// PostCommentRequest is the JSON payload for posting a comment.
type PostCommentRequest struct {
	// Body is the comment text; must be non-blank.
	Body string `json:"body" binding:"required"`
	// ParentID optionally makes this a reply to another comment on the
	// same catch.
	ParentID *string `json:"parent_id,omitempty"`
}

// SubmitReportRequest is the JSON payload for filing an abuse report.
type SubmitReportRequest struct {
	// TargetType is "catch" or "comment".
	TargetType string `json:"target_type" binding:"required"`
	// TargetID identifies the reported row.
	TargetID string `json:"target_id" binding:"required"`
	// Reason is the reporter's free-text justification; must be non-blank.
	Reason string `json:"reason" binding:"required"`
}

// PostComment creates a comment on a catch for the current user. Limited
// users get 429; the comment insert also triggers best-effort notifications
// to the catch owner, parent comment author, and mentioned users.
func (h *Handlers) PostComment(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	var req PostCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	comment, err := h.comments.Post(c.Request.Context(), uid, c.Param("id"), req.ParentID, req.Body)
	if err != nil {
		gatedActionError(c, err)
		return
	}
	ok(c, http.StatusCreated, comment)
}

// SubmitReport files an abuse report by the current user against a catch or
// comment. Limited reporters get 429.
func (h *Handlers) SubmitReport(c *gin.Context) {
	uid, authed := requireUser(c)
	if !authed {
		return
	}

	var req SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	report, err := h.reports.Submit(c.Request.Context(), uid,
		strings.ToLower(strings.TrimSpace(req.TargetType)), req.TargetID, req.Reason)
	if err != nil {
		gatedActionError(c, err)
		return
	}
	ok(c, http.StatusCreated, report)
}
