package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BorneOnline lists the kiosk devices currently considered online for a
// session. Staleness is evaluated at read time against the presence
// timeout, nothing here depends on the sweep.
func (a *API) BorneOnline(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	sessionID := c.Param("sessionID")
	if sessionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No session ID provided",
			"requestID": requestID,
		})
		return
	}

	devices, err := a.Presence.ListOnline(c.Request.Context(), sessionID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list online devices", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
	})
}
