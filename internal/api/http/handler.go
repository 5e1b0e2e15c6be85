package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"velha-online/internal/store"
)

// @Summary List waiting rooms
// @Description Rooms with status=waiting, newest first, at most 10
// @Tags Room
// @Produce json
// @Param limit query int false "Page size (max 10)"
// @Success 200 {object} map[string]interface{}
// @Router /rooms [get]
func ListRoomsHandler(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		rooms, err := st.ListWaitingRooms(c.Request.Context(), limit)
		if err != nil {
			log.Printf("http: list rooms: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		out := make([]RoomSummaryResponse, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, RoomSummaryResponse{ID: r.ID, HostName: r.HostName, CreatedAt: r.CreatedAt})
		}
		c.JSON(http.StatusOK, gin.H{"rooms": out})
	}
}

// @Summary Get one room
// @Description Current snapshot of a room by its shareable code
// @Tags Room
// @Produce json
// @Param code path string true "Room code"
// @Success 200 {object} RoomResponse
// @Failure 404 {object} map[string]interface{}
// @Router /rooms/{code} [get]
func GetRoomHandler(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(c.Param("code"))
		r, err := st.GetRoom(c.Request.Context(), code)
		if err != nil {
			if errors.Is(err, store.ErrRoomNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
				return
			}
			log.Printf("http: get room %s: %v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		resp, err := toRoomResponse(r)
		if err != nil {
			log.Printf("http: room %s has a corrupt board: %v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt room record"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary Chat history
// @Description Messages of a room, oldest first
// @Tags Chat
// @Produce json
// @Param code path string true "Room code"
// @Param limit query int false "Max messages"
// @Success 200 {object} map[string]interface{}
// @Router /rooms/{code}/messages [get]
func ListMessagesHandler(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(c.Param("code"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		msgs, err := st.ListMessages(c.Request.Context(), code, limit)
		if err != nil {
			log.Printf("http: list messages for %s: %v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		out := make([]MessageResponse, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, MessageResponse{PlayerName: m.PlayerName, Text: m.Text, CreatedAt: m.CreatedAt})
		}
		c.JSON(http.StatusOK, gin.H{"messages": out})
	}
}

// @Summary Health check
// @Tags Meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /healthz [get]
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
