package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boubou-paradis/photojet-sub002/model"
	"github.com/boubou-paradis/photojet-sub002/util"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// How many times code generation retries before giving up. The code space
// is small on purpose (guests type these), so collisions with other active
// sessions are expected and handled by redrawing.
const maxCodeAttempts = 25

// SubscriptionChecker answers whether an owner's plan currently allows
// creating sessions. The billing provider lives outside the core, this is
// the whole surface we consume from it.
type SubscriptionChecker interface {
	Active(ctx context.Context, ownerID string) (bool, error)
}

// AllowAll is the default checker for deployments without billing.
type AllowAll struct{}

func (AllowAll) Active(context.Context, string) (bool, error) { return true, nil }

// Sessions owns the session lifecycle: creation with code allocation,
// owner-gated settings updates and the join-by-code resolution every other
// component goes through.
type Sessions struct {
	DB   *gorm.DB
	Subs SubscriptionChecker
}

func NewSessions(db *gorm.DB, subs SubscriptionChecker) *Sessions {
	if subs == nil {
		subs = AllowAll{}
	}
	return &Sessions{DB: db, Subs: subs}
}

type CreateSessionInput struct {
	Name              string `json:"name"`
	ModerationEnabled bool   `json:"moderation_enabled"`
	SlideDuration     int    `json:"slide_duration"`
	Transition        string `json:"transition"`
	BorneEnabled      bool   `json:"borne_enabled"`
	BorneCountdown    int    `json:"borne_countdown"`
	BorneCamera       string `json:"borne_camera"`
	// Hours until the session stops being joinable. Zero means the
	// configured default.
	TTLHours int `json:"ttl_hours"`
}

func (s *Sessions) Create(ctx context.Context, ownerID string, in CreateSessionInput) (*model.Session, error) {
	active, err := s.Subs.Active(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription, %w", err)
	}
	if !active {
		return nil, ErrSubscriptionInactive
	}

	ttl := in.TTLHours
	if ttl <= 0 {
		ttl = viper.GetInt("session.ttl_hours")
		if ttl <= 0 {
			ttl = 72
		}
	}

	now := time.Now()

	code, err := s.freeCode(ctx, now)
	if err != nil {
		return nil, err
	}

	sess := &model.Session{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		Name:              in.Name,
		Code:              code,
		ModerationEnabled: in.ModerationEnabled,
		IsActive:          true,
		SlideDuration:     in.SlideDuration,
		Transition:        in.Transition,
		BorneEnabled:      in.BorneEnabled,
		BorneCountdown:    in.BorneCountdown,
		BorneCamera:       in.BorneCamera,
		ExpiresAt:         now.Add(time.Duration(ttl) * time.Hour),
	}

	if in.BorneEnabled {
		borneCode, err := s.freeCode(ctx, now)
		if err != nil {
			return nil, err
		}
		sess.BorneCode = borneCode
	}

	if err := s.DB.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to save session, %w", err)
	}

	zap.L().Info("Session created",
		zap.String("session_id", sess.ID),
		zap.String("code", sess.Code),
		zap.Bool("moderation", sess.ModerationEnabled))

	return sess, nil
}

// freeCode draws numeric codes until one is unused by any currently-active
// session, either as a guest code or a borne code.
func (s *Sessions) freeCode(ctx context.Context, now time.Time) (string, error) {
	length := viper.GetInt("session.code_length")
	if length < 4 {
		length = 4
	}

	for range maxCodeAttempts {
		code := util.NumericCode(length)

		var count int64
		err := s.DB.WithContext(ctx).
			Model(model.Session{}).
			Where("(code = ? OR borne_code = ?) AND is_active = ? AND expires_at > ?", code, code, true, now).
			Count(&count).
			Error
		if err != nil {
			return "", fmt.Errorf("failed to check code collision, %w", err)
		}

		if count == 0 {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

// UpdateSessionInput carries the owner-editable settings. Nil fields stay
// untouched.
type UpdateSessionInput struct {
	Name              *string `json:"name"`
	ModerationEnabled *bool   `json:"moderation_enabled"`
	SlideDuration     *int    `json:"slide_duration"`
	Transition        *string `json:"transition"`
	BorneEnabled      *bool   `json:"borne_enabled"`
	BorneCountdown    *int    `json:"borne_countdown"`
	BorneCamera       *string `json:"borne_camera"`
}

func (s *Sessions) Update(ctx context.Context, sessionID, ownerID string, in UpdateSessionInput) (*model.Session, error) {
	sess, err := s.byID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	if in.Name != nil {
		sess.Name = *in.Name
	}
	if in.ModerationEnabled != nil {
		sess.ModerationEnabled = *in.ModerationEnabled
	}
	if in.SlideDuration != nil {
		sess.SlideDuration = *in.SlideDuration
	}
	if in.Transition != nil {
		sess.Transition = *in.Transition
	}
	if in.BorneEnabled != nil {
		sess.BorneEnabled = *in.BorneEnabled

		if sess.BorneEnabled && sess.BorneCode == "" {
			code, err := s.freeCode(ctx, time.Now())
			if err != nil {
				return nil, err
			}
			sess.BorneCode = code
		}
	}
	if in.BorneCountdown != nil {
		sess.BorneCountdown = *in.BorneCountdown
	}
	if in.BorneCamera != nil {
		sess.BorneCamera = *in.BorneCamera
	}

	if err := s.DB.WithContext(ctx).Save(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to update session, %w", err)
	}

	return sess, nil
}

// Deactivate is the owner's kill switch. The session keeps its row but is
// no longer joinable, independent of expiry.
func (s *Sessions) Deactivate(ctx context.Context, sessionID, ownerID string) error {
	sess, err := s.byID(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.OwnerID != ownerID {
		return ErrForbidden
	}

	err = s.DB.WithContext(ctx).
		Model(model.Session{}).
		Where("id = ?", sessionID).
		Update("is_active", false).
		Error
	if err != nil {
		return fmt.Errorf("failed to deactivate session, %w", err)
	}

	return nil
}

func (s *Sessions) byID(ctx context.Context, sessionID string) (*model.Session, error) {
	var sess model.Session

	err := s.DB.WithContext(ctx).Where("id = ?", sessionID).First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to fetch session, %w", err)
	}

	return &sess, nil
}

// ResolveJoinable looks a session up by guest or borne code and reports
// which intake channel the code belongs to. Unknown, deactivated and
// expired sessions are indistinguishable to the caller.
func (s *Sessions) ResolveJoinable(ctx context.Context, code string) (*model.Session, string, error) {
	if code == "" {
		return nil, "", ErrSessionNotFound
	}

	// Expired rows may share a code with a newer active session, so the
	// joinable conditions live in the query instead of a post-check.
	now := time.Now()
	source := model.PhotoSourceInvite

	var sess model.Session
	err := s.DB.WithContext(ctx).
		Where("code = ? AND is_active = ? AND expires_at > ?", code, true, now).
		First(&sess).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		source = model.PhotoSourceBorne
		err = s.DB.WithContext(ctx).
			Where("borne_code = ? AND borne_enabled = ? AND is_active = ? AND expires_at > ?", code, true, true, now).
			First(&sess).
			Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrSessionNotFound
		}
		return nil, "", fmt.Errorf("failed to resolve session code, %w", err)
	}

	return &sess, source, nil
}
