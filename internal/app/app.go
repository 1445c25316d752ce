package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quickcart/core/internal/config"
	"github.com/quickcart/core/internal/middleware"
	"github.com/quickcart/core/internal/modules/gateway/gateway"
	"github.com/quickcart/core/internal/modules/gateway/realtime"
	"github.com/quickcart/core/internal/modules/gateway/store"
	pkgcron "github.com/quickcart/core/internal/pkg/cron"
	jwtpkg "github.com/quickcart/core/internal/pkg/jwt"
	pkgredis "github.com/quickcart/core/internal/pkg/redis"
	"go.uber.org/zap"
)

// App holds all application dependencies. State lives on this instance, not
// in package globals; whatever serves connections gets a handle to it.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	hub    *gateway.Hub
	rt     *realtime.Service
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
}

// New initializes the application: config → Redis → stores → hub → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}

	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		var err error
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Warn("redis_url is empty, rate limiting and online stats disabled")
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	events := store.NewEventStore(cfg.Gateway.EventHistorySize)
	notifications := store.NewNotificationStore(cfg.Gateway.NotificationsPerUser)

	hub := gateway.NewHub(events, func(token string) (string, string, error) {
		claims, err := middleware.ValidateTokenClaims(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID, claims.Role, nil
	}, rc, logger, cfg.HeartbeatInterval())

	rt := realtime.New(hub, events, notifications, logger)

	ctx, cancel := context.WithCancel(context.Background())

	sched := pkgcron.New()
	if idle := cfg.IdleTimeout(); idle > 0 {
		sched.Register(pkgcron.Job{
			Name:        "idle-session-sweep",
			Description: "disconnect sessions with no activity past the idle timeout",
			Interval:    cfg.IdleSweepInterval(),
			Fn: func(context.Context) error {
				if n := hub.SweepIdle(idle); n > 0 {
					logger.Info("idle sweep evicted sessions", zap.Int("count", n))
				}
				return nil
			},
		})
		sched.Start(ctx)
	}

	app := &App{
		cfg:    cfg,
		router: router,
		hub:    hub,
		rt:     rt,
		logger: logger,
		cancel: cancel,
		sched:  sched,
	}
	app.registerRoutes(rc, notifications)

	return app, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsCfg.AllowOriginFunc = func(origin string) bool {
			return originAllowed(patterns, origin)
		}
	} else {
		corsCfg.AllowOriginFunc = func(origin string) bool { return true }
	}
	return corsCfg
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Realtime returns the facade producers use to emit targeted events.
func (a *App) Realtime() *realtime.Service { return a.rt }

// Shutdown disconnects all clients and stops background goroutines.
func (a *App) Shutdown() {
	a.cancel()
	a.hub.Close()
}

var processStart = time.Now()
