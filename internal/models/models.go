package models

import (
	"time"
)

// Template caches a gateway template definition locally.
type Template struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	Language   string    `gorm:"type:varchar(50)" json:"language"`
	Category   string    `gorm:"type:varchar(100)" json:"category"`
	Status     string    `gorm:"type:varchar(50)" json:"status"`
	Components string    `gorm:"type:text" json:"components"` // JSON components
	SyncedAt   time.Time `gorm:"autoUpdateTime" json:"synced_at"`
}

func (Template) TableName() string {
	return "templates"
}

// MediaAsset records a completed two-phase upload so the handle can be
// reused without re-uploading.
type MediaAsset struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Handle     string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"handle"`
	Filename   string    `gorm:"type:varchar(255)" json:"filename"`
	MimeType   string    `gorm:"type:varchar(100)" json:"mime_type"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

func (MediaAsset) TableName() string {
	return "media_assets"
}

// SendRecord is the persisted per-recipient outcome of a broadcast session.
// One row per (session, recipient); retries update the row in place.
type SendRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_session_recipient" json:"session_id"`
	TemplateID  string    `gorm:"type:varchar(255);index" json:"template_id"`
	Recipient   string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_session_recipient" json:"recipient"`
	Outcome     string    `gorm:"type:varchar(20)" json:"outcome"`
	ErrorDetail string    `gorm:"type:text" json:"error_detail"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SendRecord) TableName() string {
	return "send_records"
}
