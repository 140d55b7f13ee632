package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/boubou-paradis/photojet-sub002/service"
	"github.com/boubou-paradis/photojet-sub002/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PhotoUpload is the public intake endpoint. The :code path segment is
// either a guest invite code or a kiosk borne code, intake records which.
func (a *API) PhotoUpload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	code := c.Param("code")

	if !strings.HasPrefix(c.Request.Header.Get("Content-Type"), "multipart/form-data") {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request",
			"requestID": requestID,
		})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to parse multipart form", zap.Error(err))
		return
	}

	files := form.File["photo"]
	if len(files) <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No photo provided",
			"requestID": requestID,
		})
		return
	}

	fh := files[0]

	status, f, contentType, err := validators.PhotoValidator(fh)
	if err != nil {
		if status == http.StatusInternalServerError {
			zap.L().Error("Failed to validate photo", zap.Error(err))

			// That's to set the error into a general one for the users
			err = errors.New("internal server error")
		}

		c.AbortWithStatusJSON(status, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to read upload", zap.Error(err))
		return
	}

	photo, err := a.Intake.Submit(c.Request.Context(), code, service.Upload{
		Data:         data,
		ContentType:  contentType,
		UploaderName: c.PostForm("uploader_name"),
	})
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

		zap.L().Error("Failed to submit photo", zap.String("code", code), zap.Error(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     photo.ID,
		"status": photo.Status,
	})
}
