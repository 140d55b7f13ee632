package api

import (
	"errors"
	"net/http"

	"github.com/boubou-paradis/photojet-sub002/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PhotoListApproved serves the slideshow read path. Public: approved
// photos are by definition publicly visible for the session.
func (a *API) PhotoListApproved(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	sessionID := c.Param("sessionID")
	if sessionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No session ID provided",
			"requestID": requestID,
		})
		return
	}

	photos, err := a.Intake.ListApproved(c.Request.Context(), sessionID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list approved photos", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photos": a.photoViews(photos),
	})
}

// PhotoListAll serves the moderation console: every photo of the session
// regardless of status, owner only.
func (a *API) PhotoListAll(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	sessionID := c.Param("id")
	if sessionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No session ID provided",
			"requestID": requestID,
		})
		return
	}

	photos, err := a.Intake.ListAll(c.Request.Context(), sessionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "Session not found",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Not your session",
				"requestID": requestID,
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to list photos", zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photos": photos,
	})
}
