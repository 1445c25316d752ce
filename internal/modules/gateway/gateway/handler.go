package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quickcart/core/internal/middleware"
	"github.com/quickcart/core/internal/modules/gateway/store"
	"github.com/quickcart/core/internal/pkg/response"
)

// RegisterRoutes mounts socket.io, the read-only query surface and the
// authenticated notification endpoints.
func RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, hub *Hub, notifications *store.NotificationStore) {
	handler := gin.WrapH(hub.Handler())
	rg.Any("/socket.io", handler)
	rg.Any("/socket.io/*any", handler)

	rg.GET("/gateway/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"connected": hub.ConnectedCount(),
			"online":    hub.OnlineCount(),
			"rooms":     hub.RoomCounts(),
		})
	})

	rg.GET("/gateway/online", func(c *gin.Context) {
		users := hub.OnlineUsers()
		c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
	})

	rg.GET("/gateway/events", func(c *gin.Context) {
		limit, ok := limitParam(c)
		if !ok {
			return
		}
		response.OK(c, hub.EventHistory(limit))
	})

	n := rg.Group("/notifications", authMW)
	n.GET("", func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		limit, ok := limitParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":   notifications.History(userID, limit),
			"unread": notifications.UnreadCount(userID),
		})
	})
	n.POST("/:id/read", func(c *gin.Context) {
		userID := middleware.CurrentUserID(c)
		if !notifications.MarkRead(userID, c.Param("id")) {
			response.NotFoundMsg(c, "notification not found")
			return
		}
		response.NoContent(c)
	})
}

// limitParam parses the optional limit query parameter. A missing value means
// the caller takes the default; a malformed or negative value is a 400.
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.BadRequest(c, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}
