package model

import "time"

// BorneConnection is one physical kiosk device attached to a session,
// keyed by (session_id, device_id). Liveness is derived from LastSeen at
// read time, an offline device simply stops heartbeating.
type BorneConnection struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"-"`

	SessionID string `gorm:"uniqueIndex:idx_borne_session_device;not null" json:"session_id"`
	DeviceID  string `gorm:"uniqueIndex:idx_borne_session_device;not null" json:"device_id"`

	DeviceType string    `json:"device_type"`
	LastSeen   time.Time `gorm:"index;not null" json:"last_seen"`
	CreatedAt  time.Time `json:"-"`
}

// Online reports whether the device's last heartbeat is within timeout.
func (b *BorneConnection) Online(now time.Time, timeout time.Duration) bool {
	return now.Sub(b.LastSeen) <= timeout
}
