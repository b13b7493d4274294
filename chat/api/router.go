package api

import (
	"chat-messaging-demo/backend/chat/ws"
	"chat-messaging-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the messaging endpoints onto the engine.
func RegisterRoutes(r *gin.Engine, handler *Handler, hub *ws.Hub, limiter *middleware.RateLimiter) {
	conversations := r.Group("/conversations")
	{
		conversations.POST("", handler.CreateConversation)
		conversations.GET("", handler.ListConversations)
		conversations.GET("/:id/messages", handler.ListMessages)
		conversations.POST("/:id/messages", limiter.Middleware(), handler.SendMessage)
		conversations.POST("/:id/messages/:message_id/reactions", handler.ToggleReaction)
		conversations.GET("/:id/resolve", handler.ResolveMessage)
	}

	r.GET("/files/:id", handler.DownloadFile)
	r.GET("/metadata/:id", handler.GetFileMetadata)
	r.PATCH("/metadata/:id/moderation", handler.UpdateModerationStatus)

	r.GET("/ws", func(c *gin.Context) {
		ws.ServeWS(hub, c)
	})
}
