package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/boubou-paradis/photojet-sub002/model"
	"github.com/boubou-paradis/photojet-sub002/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type photoView struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	UploaderName string     `json:"uploader_name,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

// SessionJoin resolves a join code and returns the session descriptor plus
// the reconcile snapshot (approved photos, online devices). This is the
// source of truth a viewer loads before attaching to the websocket feed.
func (a *API) SessionJoin(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	code := c.Param("code")

	sess, source, err := a.Sessions.ResolveJoinable(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "Session not found",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to resolve join code", zap.String("code", code), zap.Error(err))
		return
	}

	photos, err := a.Intake.ListApproved(c.Request.Context(), sess.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list approved photos", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}

	devices, err := a.Presence.ListOnline(c.Request.Context(), sess.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list online devices", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": sess,
		"source":  source,
		"photos":  a.photoViews(photos),
		"devices": devices,
	})
}

func (a *API) photoViews(photos []model.Photo) []photoView {
	views := make([]photoView, 0, len(photos))
	for _, p := range photos {
		views = append(views, photoView{
			ID:           p.ID,
			URL:          a.Intake.PublicURL(&p),
			UploaderName: p.UploaderName,
			ApprovedAt:   p.ApprovedAt,
		})
	}
	return views
}
