// Package model defines database models
package model

import "time"

// Session is one event's photo-sharing instance. Guests join it with the
// short numeric Code, kiosk devices with BorneCode. A session with
// is_active = false or past its expiry behaves exactly like a session that
// never existed.
type Session struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID string `gorm:"index;not null" json:"-"`

	Name string `json:"name"`

	// Codes are only unique among currently-active sessions, so no DB-level
	// unique index. Collisions are checked at creation time instead.
	Code string `gorm:"index;not null" json:"code"`

	ModerationEnabled bool `json:"moderation_enabled"`
	IsActive          bool `json:"is_active"`

	// Slideshow display preferences
	SlideDuration int    `json:"slide_duration"`
	Transition    string `json:"transition"`

	// Kiosk ("borne") configuration
	BorneEnabled   bool   `json:"borne_enabled"`
	BorneCode      string `gorm:"index" json:"borne_code"`
	BorneCountdown int    `json:"borne_countdown"`
	BorneCamera    string `json:"borne_camera"`

	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// Joinable reports whether guests may still attach to the session.
func (s *Session) Joinable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
