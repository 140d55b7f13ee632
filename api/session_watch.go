package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/boubou-paradis/photojet-sub002/service"
	"github.com/boubou-paradis/photojet-sub002/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The join code is the access check, viewers come from anywhere
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionWatch upgrades to a websocket subscription on a session's feed.
// The first frame is always a sync snapshot, deltas follow. A client that
// reconnects starts over from a fresh snapshot, the stream never replays.
func (a *API) SessionWatch(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	code := c.Param("code")

	sess, _, err := a.Sessions.ResolveJoinable(c.Request.Context(), code)
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

		zap.L().Error("Failed to resolve watch code", zap.String("code", code), zap.Error(err))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	// Register before querying the snapshot. An event published while the
	// queries run is then queued as a delta; built the other way around it
	// would miss both the snapshot and the stream.
	client := ws.NewClient(a.Hub, conn, sess.ID)

	photos, err := a.Intake.ListApproved(c.Request.Context(), sess.ID)
	if err != nil {
		zap.L().Error("Failed to build sync snapshot", zap.String("session_id", sess.ID), zap.Error(err))
		client.Close()
		return
	}

	devices, err := a.Presence.ListOnline(c.Request.Context(), sess.ID)
	if err != nil {
		zap.L().Error("Failed to build sync snapshot", zap.String("session_id", sess.ID), zap.Error(err))
		client.Close()
		return
	}

	snapshot := &ws.SyncSnapshot{
		Photos:  make([]ws.PhotoEvent, 0, len(photos)),
		Devices: make([]ws.DeviceEvent, 0, len(devices)),
	}

	for _, p := range photos {
		snapshot.Photos = append(snapshot.Photos, ws.PhotoEvent{
			ID:           p.ID,
			URL:          a.Intake.PublicURL(&p),
			UploaderName: p.UploaderName,
			ApprovedAt:   p.ApprovedAt,
		})
	}

	for _, d := range devices {
		snapshot.Devices = append(snapshot.Devices, ws.DeviceEvent{
			DeviceID:   d.DeviceID,
			DeviceType: d.DeviceType,
			Online:     true,
		})
	}

	client.Run(&ws.Event{
		Type:      ws.EventSync,
		SessionID: sess.ID,
		Sync:      snapshot,
		Timestamp: time.Now(),
	})
}
