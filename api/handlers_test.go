package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/boubou-paradis/photojet-sub002/middleware"
	"github.com/boubou-paradis/photojet-sub002/model"
	"github.com/boubou-paradis/photojet-sub002/service"
	"github.com/boubou-paradis/photojet-sub002/ws"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memStore is an in-memory ObjectStorage for tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
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

func newTestAPI(t *testing.T) *API {
	t.Helper()

	gin.SetMode(gin.TestMode)

	viper.Set("jwt.secret", "test-secret")
	viper.Set("session.ttl_hours", 72)
	viper.Set("session.code_length", 4)
	viper.Set("upload.max_size", int64(25<<20))
	viper.Set("upload.max_dimension", 2560)
	viper.Set("upload.max_encoded_size", int64(4<<20))
	viper.Set("presence.timeout_seconds", 30)

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
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.Session{}, model.Photo{}, model.BorneConnection{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	a := &API{
		DB:     db,
		Router: gin.New(),
		Store:  &memStore{objects: make(map[string][]byte)},
		Hub:    ws.NewHub(),
	}

	a.Router.Use(gin.Recovery(), middleware.NewRequestIDMiddleware())

	a.Sessions = service.NewSessions(db, service.AllowAll{})
	a.Intake = service.NewIntake(db, a.Store, a.Sessions, a.Hub)
	a.Moderation = service.NewModeration(db, a.Store, a.Hub)
	a.Presence = service.NewPresence(db, a.Sessions, a.Hub)

	go a.Hub.Run()

	a.routes()
	return a
}

func authCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     float64(time.Now().Add(time.Hour).Unix()),
	})

	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret")))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	return &http.Cookie{Name: "auth_token", Value: signed}
}

func doJSON(t *testing.T, a *API, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func uploadPhoto(t *testing.T, a *API, code, uploader string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fw, err := form.CreateFormFile("photo", "shot.jpg")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(makeJPEG(t, 64, 48)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if uploader != "" {
		form.WriteField("uploader_name", uploader)
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/photos/"+code, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func TestHeartbeatEndpoint(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodHead, "/api/heartbeat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSessionCreateRequiresAuth(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/sessions", gin.H{"name": "Mariage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", rec.Code)
	}
}

func TestSessionCreateAndJoin(t *testing.T) {
	a := newTestAPI(t)
	cookie := authCookie(t, "owner-1")

	rec := doJSON(t, a, http.MethodPost, "/api/sessions", gin.H{
		"name":               "Mariage Claire & Max",
		"moderation_enabled": true,
	}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var sess model.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if sess.Code == "" {
		t.Fatal("created session has no join code")
	}

	rec = doJSON(t, a, http.MethodGet, "/api/sessions/join/"+sess.Code, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 joining %q, got %d", sess.Code, rec.Code)
	}

	var joined struct {
		Source  string            `json:"source"`
		Photos  []json.RawMessage `json:"photos"`
		Devices []json.RawMessage `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &joined); err != nil {
		t.Fatalf("failed to decode join response: %v", err)
	}
	if joined.Source != model.PhotoSourceInvite {
		t.Errorf("expected invite source, got %q", joined.Source)
	}
	if len(joined.Photos) != 0 {
		t.Errorf("fresh session should have no photos, got %d", len(joined.Photos))
	}
}

func TestJoinUnknownCode(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(t, a, http.MethodGet, "/api/sessions/join/0000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPhotoUploadRoundTrip(t *testing.T) {
	a := newTestAPI(t)
	cookie := authCookie(t, "owner-1")

	rec := doJSON(t, a, http.MethodPost, "/api/sessions", gin.H{"name": "Open wall"}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var sess model.Session
	json.Unmarshal(rec.Body.Bytes(), &sess)

	rec = uploadPhoto(t, a, sess.Code, "Tante Jeanne")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	if created.Status != model.PhotoStatusApproved {
		t.Fatalf("unmoderated session should auto approve, got %q", created.Status)
	}

	rec = doJSON(t, a, http.MethodGet, "/api/sessions/join/"+sess.Code, nil)
	var joined struct {
		Photos []photoView `json:"photos"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &joined); err != nil {
		t.Fatalf("failed to decode join response: %v", err)
	}
	if len(joined.Photos) != 1 {
		t.Fatalf("expected 1 approved photo, got %d", len(joined.Photos))
	}
	if joined.Photos[0].URL == "" {
		t.Error("photo view is missing its public URL")
	}
	if joined.Photos[0].UploaderName != "Tante Jeanne" {
		t.Errorf("uploader name lost: %q", joined.Photos[0].UploaderName)
	}
}

func TestPhotoUploadUnknownCode(t *testing.T) {
	a := newTestAPI(t)

	rec := uploadPhoto(t, a, "9999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestModerationDecideFlow(t *testing.T) {
	a := newTestAPI(t)
	owner := authCookie(t, "owner-1")

	rec := doJSON(t, a, http.MethodPost, "/api/sessions", gin.H{
		"name":               "Gala",
		"moderation_enabled": true,
	}, owner)
	var sess model.Session
	json.Unmarshal(rec.Body.Bytes(), &sess)

	rec = uploadPhoto(t, a, sess.Code, "")
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Status != model.PhotoStatusPending {
		t.Fatalf("moderated session should hold photos pending, got %q", created.Status)
	}

	rec = doJSON(t, a, http.MethodPost, "/api/moderation/"+created.ID, gin.H{"outcome": "approve"}, authCookie(t, "intruder"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non owner, got %d", rec.Code)
	}

	rec = doJSON(t, a, http.MethodPost, "/api/moderation/"+created.ID, gin.H{"outcome": "approve"}, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, a, http.MethodPost, "/api/moderation/"+created.ID, gin.H{"outcome": "reject"}, owner)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second decision should conflict, got %d", rec.Code)
	}

	rec = doJSON(t, a, http.MethodPost, "/api/moderation/"+created.ID, gin.H{"outcome": "burn"}, owner)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad outcome, got %d", rec.Code)
	}
}

func TestBorneHeartbeatAndOnline(t *testing.T) {
	a := newTestAPI(t)
	owner := authCookie(t, "owner-1")

	rec := doJSON(t, a, http.MethodPost, "/api/sessions", gin.H{
		"name":          "Borne nuit",
		"borne_enabled": true,
	}, owner)
	var sess model.Session
	json.Unmarshal(rec.Body.Bytes(), &sess)
	if sess.BorneCode == "" {
		t.Fatal("borne enabled session has no borne code")
	}

	rec = doJSON(t, a, http.MethodPost, "/api/borne/"+sess.BorneCode+"/heartbeat", gin.H{
		"device_id":   "kiosk-1",
		"device_type": "borne",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, a, http.MethodGet, "/api/borne/online/"+sess.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var online struct {
		Devices []model.BorneConnection `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &online); err != nil {
		t.Fatalf("failed to decode online response: %v", err)
	}
	if len(online.Devices) != 1 || online.Devices[0].DeviceID != "kiosk-1" {
		t.Fatalf("expected kiosk-1 online, got %+v", online.Devices)
	}

	rec = doJSON(t, a, http.MethodPost, "/api/borne/"+sess.BorneCode+"/heartbeat", gin.H{"device_type": "borne"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("heartbeat without device_id should 400, got %d", rec.Code)
	}
}

func TestSessionDeactivateClosesJoin(t *testing.T) {
	a := newTestAPI(t)
	owner := authCookie(t, "owner-1")

	rec := doJSON(t, a, http.MethodPost, "/api/sessions", gin.H{"name": "Vernissage"}, owner)
	var sess model.Session
	json.Unmarshal(rec.Body.Bytes(), &sess)

	rec = doJSON(t, a, http.MethodPost, "/api/sessions/"+sess.ID+"/deactivate", nil, owner)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, a, http.MethodGet, "/api/sessions/join/"+sess.Code, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deactivated session must not be joinable, got %d", rec.Code)
	}
}
