package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boubou-paradis/photojet-sub002/model"
	"github.com/boubou-paradis/photojet-sub002/storage"
	"github.com/boubou-paradis/photojet-sub002/ws"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Moderation outcomes accepted from the console.
const (
	OutcomeApprove = "approve"
	OutcomeReject  = "reject"
)

// Moderation flips photos out of pending. Approve and reject are terminal:
// the transition is one conditional UPDATE guarded on the current status,
// so two racing moderators can't both win.
type Moderation struct {
	DB    *gorm.DB
	Store storage.ObjectStorage
	Feed  Feed
}

func NewModeration(db *gorm.DB, store storage.ObjectStorage, feed Feed) *Moderation {
	if feed == nil {
		feed = NopFeed{}
	}
	return &Moderation{DB: db, Store: store, Feed: feed}
}

// Decide applies one moderator decision. The moderator must own the
// session the photo belongs to. A photo that already left pending returns
// ErrAlreadyDecided so the race loser can tell it lost.
func (m *Moderation) Decide(ctx context.Context, photoID, moderatorID, outcome string) (*model.Photo, error) {
	var status string
	switch outcome {
	case OutcomeApprove:
		status = model.PhotoStatusApproved
	case OutcomeReject:
		status = model.PhotoStatusRejected
	default:
		return nil, fmt.Errorf("unknown outcome %q", outcome)
	}

	var photo model.Photo
	err := m.DB.WithContext(ctx).Where("id = ?", photoID).First(&photo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to fetch photo, %w", err)
	}

	var sess model.Session
	err = m.DB.WithContext(ctx).Where("id = ?", photo.SessionID).First(&sess).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session, %w", err)
	}

	if sess.OwnerID != moderatorID {
		return nil, ErrForbidden
	}

	updates := map[string]any{"status": status}

	var approvedAt *time.Time
	if status == model.PhotoStatusApproved {
		now := time.Now()
		approvedAt = &now
		updates["approved_at"] = &now
	}

	// The status guard makes this the serialization point for concurrent
	// decisions on the same photo.
	res := m.DB.WithContext(ctx).
		Model(model.Photo{}).
		Where("id = ? AND status = ?", photoID, model.PhotoStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update photo status, %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return nil, ErrAlreadyDecided
	}

	photo.Status = status
	photo.ApprovedAt = approvedAt

	zap.L().Info("Photo decided",
		zap.String("photo_id", photo.ID),
		zap.String("session_id", photo.SessionID),
		zap.String("outcome", outcome))

	if status == model.PhotoStatusApproved {
		m.Feed.Publish(photo.SessionID, ws.Event{
			Type: ws.EventPhotoApproved,
			Photo: &ws.PhotoEvent{
				ID:           photo.ID,
				URL:          m.Store.PublicURL(photo.StoragePath),
				UploaderName: photo.UploaderName,
				ApprovedAt:   photo.ApprovedAt,
			},
		})
	}

	return &photo, nil
}
