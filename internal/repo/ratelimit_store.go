// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the durable store behind the
// sliding-window action limiter: one row per action key holding the admitted
// timestamps as a JSON array of unix milliseconds.
package repo

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reefline/go-catchlog-backend/internal/domain"
)

// WindowStore persists sliding-window state through the rate_limit_windows
// table. It satisfies ratelimit.Store.
type WindowStore struct {
	DB *gorm.DB
}

// NewWindowStore returns a store backed by db.
func NewWindowStore(db *gorm.DB) *WindowStore { return &WindowStore{DB: db} }

// Load returns the persisted timestamps for key. A missing row is an empty
// window, not an error; a row that fails to parse is reported as an error so
// the limiter can apply its fail-open policy (and log it).
func (s *WindowStore) Load(key string) ([]time.Time, error) {
	var row domain.RateLimitWindow
	err := s.DB.Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var millis []int64
	if err := json.Unmarshal([]byte(row.Timestamps), &millis); err != nil {
		return nil, err
	}
	out := make([]time.Time, len(millis))
	for i, ms := range millis {
		out[i] = time.UnixMilli(ms).UTC()
	}
	return out, nil
}

// Save upserts the timestamps for key.
func (s *WindowStore) Save(key string, stamps []time.Time) error {
	millis := make([]int64, len(stamps))
	for i, t := range stamps {
		millis[i] = t.UnixMilli()
	}
	b, err := json.Marshal(millis)
	if err != nil {
		return err
	}
	row := domain.RateLimitWindow{
		Key:        key,
		Timestamps: string(b),
		UpdatedAt:  time.Now().UTC(),
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamps", "updated_at"}),
	}).Create(&row).Error
}
