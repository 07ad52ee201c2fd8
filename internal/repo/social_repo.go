// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for profiles,
// catches, comments, and reports — the rows the gated write actions touch.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reefline/go-catchlog-backend/internal/domain"
)

// GetProfile fetches a profile by id.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetProfileByUsername fetches a profile by its unique username.
func GetProfileByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("username = ?", username).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// IsAdmin reports whether the profile exists and carries the admin flag.
// A missing profile is simply not an admin.
func IsAdmin(ctx context.Context, db *gorm.DB, userID string) (bool, error) {
	p, err := GetProfile(ctx, db, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsAdmin, nil
}

// ListAdminIDs returns the ids of every admin profile.
func ListAdminIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.Profile{}).
		Where("is_admin = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// GetCatch fetches a catch by id.
func GetCatch(ctx context.Context, db *gorm.DB, id string) (*domain.Catch, error) {
	var c domain.Catch
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateComment inserts a new comment row.
func CreateComment(ctx context.Context, db *gorm.DB, catchID, userID string, parentID *string, body string) (*domain.Comment, error) {
	c := &domain.Comment{
		ID:        uuid.NewString(),
		CatchID:   catchID,
		UserID:    userID,
		ParentID:  parentID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	return c, db.WithContext(ctx).Create(c).Error
}

// GetComment fetches a comment by id.
func GetComment(ctx context.Context, db *gorm.DB, id string) (*domain.Comment, error) {
	var c domain.Comment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateReport inserts a new open report row.
func CreateReport(ctx context.Context, db *gorm.DB, reporterID, targetType, targetID, reason string) (*domain.Report, error) {
	r := &domain.Report{
		ID:         uuid.NewString(),
		ReporterID: reporterID,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     reason,
		Status:     domain.ReportStatusOpen,
		CreatedAt:  time.Now().UTC(),
	}
	return r, db.WithContext(ctx).Create(r).Error
}
