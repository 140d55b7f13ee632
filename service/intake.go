package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	"github.com/boubou-paradis/photojet-sub002/model"
	"github.com/boubou-paradis/photojet-sub002/storage"
	"github.com/boubou-paradis/photojet-sub002/ws"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Intake accepts guest and kiosk uploads for a session: resolve the code,
// bound the binary, persist it and make it visible through moderation or,
// when moderation is off, immediately on the feed.
type Intake struct {
	DB         *gorm.DB
	Store      storage.ObjectStorage
	Sessions   *Sessions
	Feed       Feed
	Transcoder *Transcoder
}

func NewIntake(db *gorm.DB, store storage.ObjectStorage, sessions *Sessions, feed Feed) *Intake {
	if feed == nil {
		feed = NopFeed{}
	}
	return &Intake{
		DB:         db,
		Store:      store,
		Sessions:   sessions,
		Feed:       feed,
		Transcoder: NewTranscoder(),
	}
}

type Upload struct {
	Data         []byte
	ContentType  string
	UploaderName string
}

// Submit runs the full intake pipeline for one photo. The binary write and
// the metadata write are not transactional: if the row can't be saved the
// uploaded object is deleted best-effort, and since readers only discover
// photos through rows, a leaked object is invisible either way.
func (i *Intake) Submit(ctx context.Context, code string, up Upload) (*model.Photo, error) {
	sess, source, err := i.Sessions.ResolveJoinable(ctx, code)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotJoinable
		}
		return nil, err
	}

	data := up.Data
	contentType := up.ContentType

	out, err := i.Transcoder.Process(data, contentType)
	if err != nil {
		// Best-effort step, keep the submission alive with the original
		zap.L().Warn("Transcode failed, storing original binary",
			zap.String("session_code", code),
			zap.Error(err))
	} else {
		data = out.Bytes
		contentType = out.ContentType
	}

	now := time.Now()

	photo := &model.Photo{
		ID:           uuid.NewString(),
		SessionID:    sess.ID,
		StoragePath:  photoKey(sess.ID, contentType),
		Status:       model.PhotoStatusPending,
		Source:       source,
		UploaderName: up.UploaderName,
		Format:       contentType,
		Size:         int64(len(data)),
		UploadedAt:   now,
	}

	if !sess.ModerationEnabled {
		photo.Status = model.PhotoStatusApproved
		photo.ApprovedAt = &now
	}

	err = i.Store.Put(ctx, photo.StoragePath, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		zap.L().Error("Failed to store photo binary",
			zap.String("session_code", code),
			zap.Error(err))
		return nil, fmt.Errorf("failed to store photo, %w", err)
	}

	if err := i.DB.WithContext(ctx).Create(photo).Error; err != nil {
		// The object is now orphaned, clean it up so it doesn't sit in the
		// bucket forever. Readers can't see it either way.
		if delErr := i.Store.Delete(context.Background(), photo.StoragePath); delErr != nil {
			zap.L().Error("Failed to cleanup orphaned binary",
				zap.String("key", photo.StoragePath),
				zap.Error(delErr))
		}

		zap.L().Error("Failed to save photo record",
			zap.String("session_code", code),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save photo, %w", err)
	}

	if photo.Status == model.PhotoStatusApproved {
		i.Feed.Publish(sess.ID, ws.Event{
			Type: ws.EventPhotoApproved,
			Photo: &ws.PhotoEvent{
				ID:           photo.ID,
				URL:          i.Store.PublicURL(photo.StoragePath),
				UploaderName: photo.UploaderName,
				ApprovedAt:   photo.ApprovedAt,
			},
		})
	}

	return photo, nil
}

// ListApproved is the reconcile read path: everything a freshly attached
// slideshow needs, in approval order.
func (i *Intake) ListApproved(ctx context.Context, sessionID string) ([]model.Photo, error) {
	var photos []model.Photo

	err := i.DB.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionID, model.PhotoStatusApproved).
		Order("approved_at ASC").
		Find(&photos).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list approved photos, %w", err)
	}

	return photos, nil
}

// ListAll feeds the moderation console. Owner only.
func (i *Intake) ListAll(ctx context.Context, sessionID, ownerID string) ([]model.Photo, error) {
	sess, err := i.Sessions.byID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	var photos []model.Photo
	err = i.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("uploaded_at ASC").
		Find(&photos).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos, %w", err)
	}

	return photos, nil
}

// PublicURL exposes the storage URL mapping for handlers.
func (i *Intake) PublicURL(p *model.Photo) string {
	return i.Store.PublicURL(p.StoragePath)
}

func photoKey(sessionID, contentType string) string {
	ext := ".jpg"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[len(exts)-1]
	}

	return "sessions/" + sessionID + "/" + uuid.NewString() + ext
}
