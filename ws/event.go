// Package ws implements the live broadcast feed. Every slideshow,
// moderation console and kiosk watching a session holds one websocket
// subscription; the hub fans out approval and presence events to them.
package ws

import "time"

// Event types pushed to subscribers. Sync is only ever the first frame of
// a connection and carries the full reconcile snapshot; everything after
// it is a delta. Subscribers that reconnect must not assume they saw every
// delta and have to start from a fresh sync.
const (
	EventSync            = "sync"
	EventPhotoApproved   = "photo_approved"
	EventPresenceChanged = "presence_changed"
)

type PhotoEvent struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	UploaderName string     `json:"uploaderName,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
}

type DeviceEvent struct {
	DeviceID   string `json:"deviceId"`
	DeviceType string `json:"deviceType"`
	Online     bool   `json:"online"`
}

type SyncSnapshot struct {
	Photos  []PhotoEvent  `json:"photos"`
	Devices []DeviceEvent `json:"devices"`
}

type Event struct {
	Type      string        `json:"type"`
	SessionID string        `json:"sessionId"`
	Photo     *PhotoEvent   `json:"photo,omitempty"`
	Device    *DeviceEvent  `json:"device,omitempty"`
	Sync      *SyncSnapshot `json:"sync,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
