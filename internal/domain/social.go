package domain

import "time"

// Profile is the minimal slice of a user account the engagement layer needs:
// a stable id, a unique username for building profile paths, and the admin
// flag consulted when fanning out report notifications.
type Profile struct {
	ID        string    `json:"id"        gorm:"type:varchar(64);primaryKey"`
	Username  string    `json:"username"  gorm:"type:varchar(64);not null;uniqueIndex"`
	IsAdmin   bool      `json:"is_admin"  gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Catch is a logged catch. Only the fields the safety layer touches are
// modeled; presentation data lives elsewhere.
type Catch struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Species   string    `json:"species" gorm:"type:varchar(128);not null"`
	Title     string    `json:"title"   gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Catch.
func (Catch) TableName() string { return "catches" }

// Comment is a comment on a catch. ParentID points at another comment when
// the comment is a reply; the notification layer uses it to address the
// parent comment's author instead of the catch owner.
type Comment struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	CatchID   string    `json:"catch_id"  gorm:"type:char(36);not null;index:idx_catch_comments,priority:1"`
	UserID    string    `json:"user_id"   gorm:"type:varchar(64);not null;index"`
	ParentID  *string   `json:"parent_id,omitempty" gorm:"type:char(36);index"`
	Body      string    `json:"body"      gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_catch_comments,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`

	Catch Catch `json:"-" gorm:"foreignKey:CatchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// Report target types.
const (
	ReportTargetCatch   = "catch"
	ReportTargetComment = "comment"
)

// Report statuses.
const (
	ReportStatusOpen     = "open"
	ReportStatusResolved = "resolved"
)

// Report is an abuse report filed by a user against a catch or a comment.
type Report struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ReporterID string    `json:"reporter_id" gorm:"type:varchar(64);not null;index"`
	TargetType string    `json:"target_type" gorm:"type:varchar(16);not null;check:target_type IN ('catch','comment')"`
	TargetID   string    `json:"target_id"   gorm:"type:char(36);not null;index"`
	Reason     string    `json:"reason"      gorm:"type:text;not null"`
	Status     string    `json:"status"      gorm:"type:varchar(16);not null;default:'open';index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string { return "reports" }
