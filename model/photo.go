package model

import "time"

// Photo moderation states. Approved and rejected are terminal, a photo
// never goes back to pending.
const (
	PhotoStatusPending  = "pending"
	PhotoStatusApproved = "approved"
	PhotoStatusRejected = "rejected"
)

// Intake channels
const (
	PhotoSourceInvite = "invite"
	PhotoSourceBorne  = "borne"
)

type Photo struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	SessionID string `gorm:"index;not null" json:"session_id"`

	// Object storage key, namespaced by session. The binary is never
	// embedded, readers resolve it through the storage public URL.
	StoragePath string `gorm:"not null" json:"-"`

	Status string `gorm:"index;not null" json:"status"`
	Source string `json:"source"`

	UploaderName string `json:"uploader_name,omitempty"`
	Format       string `json:"format"`
	Size         int64  `json:"size"`

	UploadedAt time.Time `gorm:"not null" json:"uploaded_at"`
	// Set on the transition to approved and never cleared. Non-null iff
	// Status == approved.
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}
