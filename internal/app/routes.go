package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quickcart/core/internal/middleware"
	"github.com/quickcart/core/internal/modules/gateway/gateway"
	"github.com/quickcart/core/internal/modules/gateway/store"
	pkgredis "github.com/quickcart/core/internal/pkg/redis"
	"github.com/quickcart/core/internal/pkg/response"
)

func (a *App) registerRoutes(rc *pkgredis.Client, notifications *store.NotificationStore) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth())
	api.Use(middleware.RateLimit(rc))

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(processStart).Truncate(time.Second).String(),
			"connected": a.hub.ConnectedCount(),
			"online":    a.hub.OnlineCount(),
		})
	})

	api.GET("/gateway/jobs", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	api.POST("/gateway/jobs/:name/run", middleware.Auth(), func(c *gin.Context) {
		if middleware.CurrentRole(c) != gateway.RoleAdmin {
			response.Forbidden(c)
			return
		}
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.NoContent(c)
	})

	gateway.RegisterRoutes(api, middleware.Auth(), a.hub, notifications)
}
