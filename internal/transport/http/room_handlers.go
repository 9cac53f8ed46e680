package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/core"
	"github.com/backworld/backworld-server/internal/store"
	"github.com/backworld/backworld-server/internal/utils"
)

// RoomView is the public shape of a room in the catalog.
type RoomView struct {
	ID             string     `json:"id"`
	Version        string     `json:"version"`
	HostUsername   string     `json:"hostUsername"`
	Gamemode       string     `json:"gamemode"`
	MapName        *string    `json:"mapName"`
	MaxPlayers     int        `json:"maxPlayers"`
	CurrentPlayers int        `json:"currentPlayers"`
	IsFull         bool       `json:"isFull"`
	IsPublic       bool       `json:"isPublic"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt"`
}

func roomView(r *store.Room) RoomView {
	return RoomView{
		ID:             r.ID,
		Version:        r.Version,
		HostUsername:   r.HostUsername,
		Gamemode:       r.Gamemode,
		MapName:        r.MapName,
		MaxPlayers:     r.MaxPlayers,
		CurrentPlayers: r.CurrentPlayers,
		IsFull:         r.CurrentPlayers >= r.MaxPlayers,
		IsPublic:       r.IsPublic,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		StartedAt:      r.StartedAt,
	}
}

// CreateRoomRequest is the body for POST /api/rooms.
type CreateRoomRequest struct {
	Version    string  `json:"version" binding:"required"`
	Gamemode   string  `json:"gamemode"`
	MapName    *string `json:"mapName"`
	MaxPlayers int     `json:"maxPlayers"`
	IsPublic   *bool   `json:"isPublic"`
}

// RoomHandlers serves the room catalog and out-of-band room creation.
type RoomHandlers struct {
	rooms      store.RoomStore
	reconciler *core.Reconciler
	hub        *core.Hub
	log        *zerolog.Logger
}

// NewRoomHandlers creates room handlers.
func NewRoomHandlers(rooms store.RoomStore, reconciler *core.Reconciler, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{rooms: rooms, reconciler: reconciler, hub: hub, log: logger}
}

// List handles GET /api/rooms. Only active public rooms are returned;
// an optional gamemode query filters the catalog.
func (h *RoomHandlers) List(c *gin.Context) {
	gamemode := c.Query("gamemode")

	rooms, err := h.rooms.ListActiveRooms(c.Request.Context(), gamemode)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list rooms"})
		return
	}

	views := make([]RoomView, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, roomView(r))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": views})
}

// Get handles GET /api/rooms/:id.
func (h *RoomHandlers) Get(c *gin.Context) {
	room, err := h.rooms.GetRoomByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to get room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get room"})
		return
	}
	c.JSON(http.StatusOK, roomView(room))
}

// Create handles POST /api/rooms. The room exists as a durable row
// immediately; the creator adopts it in memory when their realtime
// session issues create_room. Requires AuthMiddleware upstream.
func (h *RoomHandlers) Create(c *gin.Context) {
	userID, username, ok := authedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "not authenticated"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	gamemode := req.Gamemode
	if gamemode == "" {
		gamemode = "sandbox"
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = 8
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	input := store.CreateRoomInput{
		ID:           utils.NewRoomCode(),
		Version:      req.Version,
		HostUserID:   userID,
		HostUsername: username,
		Gamemode:     gamemode,
		MapName:      req.MapName,
		MaxPlayers:   maxPlayers,
		IsPublic:     isPublic,
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), input)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create room"})
		return
	}

	if err := h.reconciler.Attach(c.Request.Context(), userID, room.ID); err != nil {
		h.log.Error().Err(err).Str("room_id", room.ID).Msg("failed to attach creator session")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create room"})
		return
	}

	h.hub.Announce()

	// Re-read after attach so the occupancy in the response is current.
	if fresh, err := h.rooms.GetRoomByID(c.Request.Context(), room.ID); err == nil {
		room = fresh
	}

	h.log.Info().Str("room_id", room.ID).Str("host", username).Msg("room created via api")
	c.JSON(http.StatusCreated, roomView(room))
}
