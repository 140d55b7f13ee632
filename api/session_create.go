package api

import (
	"errors"
	"net/http"

	"github.com/boubou-paradis/photojet-sub002/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (a *API) SessionCreate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var in service.CreateSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	sess, err := a.Sessions.Create(c.Request.Context(), userID, in)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionInactive) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":     "Subscription inactive",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create session", zap.Error(err))
		return
	}

	c.JSON(http.StatusCreated, sess)
}
