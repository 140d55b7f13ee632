package api

import (
	"errors"
	"net/http"

	"github.com/boubou-paradis/photojet-sub002/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type decideRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=approve reject"`
}

// PhotoDecide applies one moderator decision. Losing a race against
// another moderator is a 409, not a silent no-op, so consoles can refresh.
func (a *API) PhotoDecide(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	photoID := c.Param("id")
	if photoID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No photo ID provided",
			"requestID": requestID,
		})
		return
	}

	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Outcome must be approve or reject",
			"requestID": requestID,
		})
		return
	}

	photo, err := a.Moderation.Decide(c.Request.Context(), photoID, userID, req.Outcome)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPhotoNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "Photo not found",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Not your session",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrAlreadyDecided):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":     "Photo already decided",
				"requestID": requestID,
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to decide photo", zap.String("photo_id", photoID), zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, photo)
}
