package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boubou-paradis/photojet-sub002/model"
	"github.com/boubou-paradis/photojet-sub002/ws"
)

func newTestPresence(t *testing.T) (*Presence, *feedRecorder) {
	t.Helper()

	db := newTestDB(t)
	feed := &feedRecorder{}
	p := NewPresence(db, NewSessions(db, nil), feed)
	p.Timeout = 30 * time.Second

	return p, feed
}

func TestHeartbeatCreatesConnection(t *testing.T) {
	testConfig(t)
	p, feed := newTestPresence(t)

	sess := seedSession(t, p.DB, nil)

	if err := p.Heartbeat(context.Background(), sess.Code, "device-1", "borne"); err != nil {
		t.Fatalf("Heartbeat returned error: %v", err)
	}

	online, err := p.ListOnline(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("ListOnline returned error: %v", err)
	}
	if len(online) != 1 || online[0].DeviceID != "device-1" {
		t.Fatalf("expected device-1 online, got %v", online)
	}

	// First heartbeat announces the device
	if got := len(feed.byType(ws.EventPresenceChanged)); got != 1 {
		t.Errorf("expected one presence_changed event, got %d", got)
	}

	// Subsequent heartbeats don't re-announce
	if err := p.Heartbeat(context.Background(), sess.Code, "device-1", "borne"); err != nil {
		t.Fatalf("second Heartbeat returned error: %v", err)
	}
	if got := len(feed.byType(ws.EventPresenceChanged)); got != 1 {
		t.Errorf("repeat heartbeat must not publish, got %d events", got)
	}
}

func TestHeartbeatUpsertsByDevice(t *testing.T) {
	testConfig(t)
	p, _ := newTestPresence(t)

	sess := seedSession(t, p.DB, nil)

	for range 5 {
		if err := p.Heartbeat(context.Background(), sess.Code, "device-1", "borne"); err != nil {
			t.Fatalf("Heartbeat returned error: %v", err)
		}
	}

	var count int64
	if err := p.DB.Model(model.BorneConnection{}).Where("session_id = ?", sess.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a single row per (session, device), got %d", count)
	}
}

func TestHeartbeatIgnoresStaleTimestamp(t *testing.T) {
	testConfig(t)
	p, _ := newTestPresence(t)

	sess := seedSession(t, p.DB, nil)

	future := time.Now().Add(time.Hour)
	conn := &model.BorneConnection{
		SessionID:  sess.ID,
		DeviceID:   "device-1",
		DeviceType: "borne",
		LastSeen:   future,
	}
	if err := p.DB.Create(conn).Error; err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}

	// A heartbeat older than the stored last_seen must not move it back
	if err := p.Heartbeat(context.Background(), sess.Code, "device-1", "borne"); err != nil {
		t.Fatalf("Heartbeat returned error: %v", err)
	}

	var stored model.BorneConnection
	if err := p.DB.Where("session_id = ? AND device_id = ?", sess.ID, "device-1").First(&stored).Error; err != nil {
		t.Fatalf("failed to reload connection: %v", err)
	}
	if stored.LastSeen.Before(future.Add(-time.Second)) {
		t.Errorf("stale heartbeat rewound last_seen to %v", stored.LastSeen)
	}
}

func TestHeartbeatUnknownCode(t *testing.T) {
	testConfig(t)
	p, _ := newTestPresence(t)

	err := p.Heartbeat(context.Background(), "0000", "device-1", "borne")
	if !errors.Is(err, ErrSessionNotJoinable) {
		t.Fatalf("expected ErrSessionNotJoinable, got %v", err)
	}
}

func TestListOnlineBoundary(t *testing.T) {
	testConfig(t)
	p, _ := newTestPresence(t)

	sess := seedSession(t, p.DB, nil)

	epsilon := 2 * time.Second
	fresh := &model.BorneConnection{
		SessionID: sess.ID,
		DeviceID:  "fresh",
		LastSeen:  time.Now().Add(-(p.Timeout - epsilon)),
	}
	stale := &model.BorneConnection{
		SessionID: sess.ID,
		DeviceID:  "stale",
		LastSeen:  time.Now().Add(-(p.Timeout + epsilon)),
	}

	if err := p.DB.Create(fresh).Error; err != nil {
		t.Fatalf("failed to seed fresh connection: %v", err)
	}
	if err := p.DB.Create(stale).Error; err != nil {
		t.Fatalf("failed to seed stale connection: %v", err)
	}

	online, err := p.ListOnline(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("ListOnline returned error: %v", err)
	}

	if len(online) != 1 {
		t.Fatalf("expected exactly one online device, got %d", len(online))
	}
	if online[0].DeviceID != "fresh" {
		t.Errorf("expected device fresh online, got %q", online[0].DeviceID)
	}
}

func TestConnectionOnlineHelper(t *testing.T) {
	now := time.Now()
	timeout := 30 * time.Second

	conn := &model.BorneConnection{LastSeen: now.Add(-timeout)}
	if !conn.Online(now, timeout) {
		t.Error("a device exactly at the threshold still counts as online")
	}

	conn.LastSeen = now.Add(-timeout - time.Millisecond)
	if conn.Online(now, timeout) {
		t.Error("a device past the threshold must be offline")
	}
}
