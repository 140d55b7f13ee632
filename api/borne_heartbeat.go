package api

import (
	"errors"
	"net/http"

	"github.com/boubou-paradis/photojet-sub002/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type heartbeatRequest struct {
	DeviceID   string `json:"device_id" binding:"required"`
	DeviceType string `json:"device_type"`
}

// BorneHeartbeat records a kiosk device's liveness. Devices post this
// every few seconds while attached to a session.
func (a *API) BorneHeartbeat(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	code := c.Param("code")

	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No device_id provided",
			"requestID": requestID,
		})
		return
	}

	err := a.Presence.Heartbeat(c.Request.Context(), code, req.DeviceID, req.DeviceType)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotJoinable) {
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

		zap.L().Error("Failed to record heartbeat",
			zap.String("code", code),
			zap.String("device_id", req.DeviceID),
			zap.Error(err))
		return
	}

	c.Status(http.StatusNoContent)
}
