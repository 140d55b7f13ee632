// Package api contains all endpoints available
package api

import (
	"fmt"
	"time"

	"github.com/boubou-paradis/photojet-sub002/db"
	"github.com/boubou-paradis/photojet-sub002/middleware"
	"github.com/boubou-paradis/photojet-sub002/service"
	"github.com/boubou-paradis/photojet-sub002/storage"
	"github.com/boubou-paradis/photojet-sub002/ws"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

type API struct {
	DB         *gorm.DB
	Router     *gin.Engine
	Store      storage.ObjectStorage
	Hub        *ws.Hub
	Sessions   *service.Sessions
	Intake     *service.Intake
	Moderation *service.Moderation
	Presence   *service.Presence
}

func NewRouter() (*API, error) {
	a := &API{
		Hub: ws.NewHub(),
	}

	db, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = db

	makeLogger()

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	a.Router.MaxMultipartMemory = 5 << 20

	s3, err := storage.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
	}
	a.Store = s3

	a.Sessions = service.NewSessions(db, service.AllowAll{})
	a.Intake = service.NewIntake(db, a.Store, a.Sessions, a.Hub)
	a.Moderation = service.NewModeration(db, a.Store, a.Hub)
	a.Presence = service.NewPresence(db, a.Sessions, a.Hub)

	go a.Hub.Run()

	if viper.GetBool("presence.sweep_enabled") {
		a.Presence.StartSweep(time.Duration(viper.GetInt("presence.sweep_minutes")) * time.Minute)
	}

	a.routes()

	return a, nil
}

func (a *API) routes() {
	jwt := middleware.NewJWTMiddleware()
	maxUploadSize := viper.GetInt64("upload.max_size")
	publicLimit := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             10,
	})

	main := a.Router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)
	}

	sessions := main.Group("/sessions")
	{
		// POST /api/sessions			-> Creates a new session for the authenticated owner
		sessions.POST("", jwt, middleware.BodySizeLimiter(1<<20), a.SessionCreate)

		// PATCH /api/sessions/:id		-> Updates a session's settings
		sessions.PATCH("/:id", jwt, middleware.BodySizeLimiter(1<<20), a.SessionUpdate)

		// POST /api/sessions/:id/deactivate	-> Owner kill switch
		sessions.POST("/:id/deactivate", jwt, a.SessionDeactivate)

		// GET /api/sessions/join/:code		-> Join-by-code descriptor + reconcile snapshot
		sessions.GET("/join/:code", a.SessionJoin)

		// GET /api/sessions/watch/:code	-> Websocket subscription to the live feed
		sessions.GET("/watch/:code", a.SessionWatch)

		// GET /api/sessions/:id/photos		-> Moderation console list, all statuses
		sessions.GET("/:id/photos", jwt, a.PhotoListAll)
	}

	photos := main.Group("/photos")
	{
		// POST /api/photos/:code 		-> Uploads a new photo to a session
		photos.POST("/:code", publicLimit, middleware.BodySizeLimiter(maxUploadSize), a.PhotoUpload)

		// GET /api/photos/approved/:sessionID	-> Approved photos, slideshow read path
		photos.GET("/approved/:sessionID", cacheFor(5), a.PhotoListApproved)
	}

	moderation := main.Group("/moderation", jwt)
	{
		// POST /api/moderation/:id		-> Approves or rejects a pending photo
		moderation.POST("/:id", a.PhotoDecide)
	}

	borne := main.Group("/borne")
	{
		// POST /api/borne/:code/heartbeat	-> Kiosk presence heartbeat
		borne.POST("/:code/heartbeat", publicLimit, a.BorneHeartbeat)

		// GET /api/borne/online/:sessionID	-> Devices currently online
		borne.GET("/online/:sessionID", a.BorneOnline)
	}
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
