package http

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"velha-online/internal/api/ws"
	"velha-online/internal/store"
)

// NewRouter wires the read-only REST surface and the websocket endpoint.
// All mutations flow through websocket sessions; REST never writes.
func NewRouter(st store.Store, hub *ws.Hub) *gin.Engine {
	r := gin.Default()

	// WebSocket for play + chat
	r.GET("/ws", hub.HandleWS)

	// --- ROOM ENDPOINTS (read-only) ---
	r.GET("/rooms", ListRoomsHandler(st))
	r.GET("/rooms/:code", GetRoomHandler(st))
	r.GET("/rooms/:code/messages", ListMessagesHandler(st))

	// --- META ---
	r.GET("/healthz", HealthHandler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
