package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/core"
)

// RoomHandlers provides HTTP handlers for live room state.
type RoomHandlers struct {
	bus core.Bus
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(bus core.Bus, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		bus: bus,
		log: logger,
	}
}

// RoomResponse represents a room in API responses. Members counts the
// connections held by this process.
type RoomResponse struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// GetRoom reports how many members a room currently has. Rooms exist only
// while they have members, so an unknown room reports zero.
// GET /api/rooms/:room
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	name := c.Param("room")

	n, err := h.bus.Members(c.Request.Context(), name)
	if err != nil {
		h.log.Error().Err(err).Str("room", name).Msg("failed to count room members")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "room registry unavailable"})
		return
	}

	c.JSON(http.StatusOK, RoomResponse{Name: name, Members: n})
}
