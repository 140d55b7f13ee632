package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boubou-paradis/photojet-sub002/model"
	"github.com/boubou-paradis/photojet-sub002/ws"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPresenceTimeout = 30 * time.Second

// Presence tracks kiosk devices by heartbeat. Liveness is computed at read
// time from last_seen, the sweeper below only bounds row growth.
type Presence struct {
	DB       *gorm.DB
	Sessions *Sessions
	Feed     Feed
	Timeout  time.Duration
}

func NewPresence(db *gorm.DB, sessions *Sessions, feed Feed) *Presence {
	if feed == nil {
		feed = NopFeed{}
	}

	timeout := time.Duration(viper.GetInt("presence.timeout_seconds")) * time.Second
	if timeout <= 0 {
		timeout = defaultPresenceTimeout
	}

	return &Presence{DB: db, Sessions: sessions, Feed: feed, Timeout: timeout}
}

// Heartbeat upserts the (session, device) connection row. Heartbeats
// racing out of order within one device can't move last_seen backwards,
// the guarded UPDATE ignores anything older than what's stored.
func (p *Presence) Heartbeat(ctx context.Context, code, deviceID, deviceType string) error {
	sess, _, err := p.Sessions.ResolveJoinable(ctx, code)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return ErrSessionNotJoinable
		}
		return err
	}

	now := time.Now()

	res := p.DB.WithContext(ctx).
		Model(model.BorneConnection{}).
		Where("session_id = ? AND device_id = ? AND last_seen <= ?", sess.ID, deviceID, now).
		Updates(map[string]any{"last_seen": now, "device_type": deviceType})
	if res.Error != nil {
		return fmt.Errorf("failed to update heartbeat, %w", res.Error)
	}

	if res.RowsAffected > 0 {
		return nil
	}

	// Either the row doesn't exist yet or a newer heartbeat already landed
	var count int64
	err = p.DB.WithContext(ctx).
		Model(model.BorneConnection{}).
		Where("session_id = ? AND device_id = ?", sess.ID, deviceID).
		Count(&count).
		Error
	if err != nil {
		return fmt.Errorf("failed to check connection row, %w", err)
	}

	if count > 0 {
		// Stale heartbeat, drop it
		return nil
	}

	conn := &model.BorneConnection{
		SessionID:  sess.ID,
		DeviceID:   deviceID,
		DeviceType: deviceType,
		LastSeen:   now,
	}

	if err := p.DB.WithContext(ctx).Create(conn).Error; err != nil {
		// Two first heartbeats racing on the unique index: the other one
		// won, retry the guarded update once.
		res := p.DB.WithContext(ctx).
			Model(model.BorneConnection{}).
			Where("session_id = ? AND device_id = ? AND last_seen <= ?", sess.ID, deviceID, now).
			Updates(map[string]any{"last_seen": now, "device_type": deviceType})
		if res.Error != nil {
			return fmt.Errorf("failed to upsert heartbeat, %w", res.Error)
		}
		return nil
	}

	zap.L().Debug("Kiosk device attached",
		zap.String("session_id", sess.ID),
		zap.String("device_id", deviceID))

	p.Feed.Publish(sess.ID, ws.Event{
		Type: ws.EventPresenceChanged,
		Device: &ws.DeviceEvent{
			DeviceID:   deviceID,
			DeviceType: deviceType,
			Online:     true,
		},
	})

	return nil
}

// ListOnline returns the devices whose last heartbeat is within the
// presence timeout. A device exactly at the threshold still counts.
func (p *Presence) ListOnline(ctx context.Context, sessionID string) ([]model.BorneConnection, error) {
	cutoff := time.Now().Add(-p.Timeout)

	var conns []model.BorneConnection
	err := p.DB.WithContext(ctx).
		Where("session_id = ? AND last_seen >= ?", sessionID, cutoff).
		Order("device_id ASC").
		Find(&conns).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list online devices, %w", err)
	}

	return conns, nil
}

// StartSweep periodically deletes connection rows that went stale long
// ago. Correctness never depends on it, ListOnline filters at read time.
func (p *Presence) StartSweep(interval time.Duration) {
	ticker := time.NewTicker(interval)

	zap.L().Debug("Presence sweep attached", zap.Duration("tick_every", interval))

	go func() {
		for range ticker.C {
			cutoff := time.Now().Add(-10 * p.Timeout)

			res := p.DB.
				Where("last_seen < ?", cutoff).
				Delete(model.BorneConnection{})
			if res.Error != nil {
				zap.L().Error("Failed to sweep stale connections", zap.Error(res.Error))
				continue
			}

			if res.RowsAffected > 0 {
				zap.L().Debug("Swept stale kiosk connections", zap.Int64("rows", res.RowsAffected))
			}
		}
	}()
}
