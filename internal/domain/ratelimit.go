package domain

import "time"

// RateLimitWindow is the persisted state of one sliding-window counter,
// keyed by the gated action class (e.g. "comment-post:u123"). Timestamps
// holds the admitted-action instants inside the trailing window as unix
// milliseconds, stored as a JSON TEXT column. Rows are written on every
// successful admission so the window survives process restarts.
type RateLimitWindow struct {
	Key        string    `gorm:"type:varchar(128);primaryKey"`
	Timestamps string    `gorm:"type:text;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the database table name for RateLimitWindow.
func (RateLimitWindow) TableName() string { return "rate_limit_windows" }
