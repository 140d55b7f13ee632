package api

import (
	"errors"
	"net/http"

	"github.com/boubou-paradis/photojet-sub002/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (a *API) SessionUpdate(c *gin.Context) {
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

	var in service.UpdateSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	sess, err := a.Sessions.Update(c.Request.Context(), sessionID, userID, in)
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

			zap.L().Error("Failed to update session", zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (a *API) SessionDeactivate(c *gin.Context) {
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

	err := a.Sessions.Deactivate(c.Request.Context(), sessionID, userID)
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

			zap.L().Error("Failed to deactivate session", zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}

	c.Status(http.StatusNoContent)
}
