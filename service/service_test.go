package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/boubou-paradis/photojet-sub002/model"
	"github.com/boubou-paradis/photojet-sub002/ws"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// Keep the shared in-memory database alive and serialized
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.Session{}, model.Photo{}, model.BorneConnection{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

func testConfig(t *testing.T) {
	t.Helper()

	viper.Set("session.ttl_hours", 72)
	viper.Set("session.code_length", 4)
	viper.Set("upload.max_size", int64(25<<20))
	viper.Set("upload.max_dimension", 2560)
	viper.Set("upload.max_encoded_size", int64(4<<20))
	viper.Set("presence.timeout_seconds", 30)
}

// memStore is an in-memory ObjectStorage for tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	if m.failPut {
		return fmt.Errorf("put failed")
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// feedRecorder captures published events instead of fanning them out.
type feedRecorder struct {
	mu     sync.Mutex
	events []ws.Event
}

func (f *feedRecorder) Publish(sessionID string, e ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.SessionID = sessionID
	f.events = append(f.events, e)
}

func (f *feedRecorder) byType(eventType string) []ws.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []ws.Event
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 8 {
		for y := 0; y < height; y += 8 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}

	return buf.Bytes()
}

func seedSession(t *testing.T, db *gorm.DB, mutate func(*model.Session)) *model.Session {
	t.Helper()

	sess := &model.Session{
		ID:                uuid.NewString(),
		OwnerID:           "owner-1",
		Name:              "Wedding",
		Code:              "4821",
		ModerationEnabled: true,
		IsActive:          true,
		ExpiresAt:         time.Now().Add(24 * time.Hour),
	}

	if mutate != nil {
		mutate(sess)
	}

	if err := db.Create(sess).Error; err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}

	return sess
}
