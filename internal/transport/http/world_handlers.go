package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/store"
)

// WorldView is the public shape of a world catalog entry. TBW is only
// populated on single-world fetches.
type WorldView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Featured  bool      `json:"featured"`
	Version   string    `json:"version"`
	Author    string    `json:"author"`
	Image     string    `json:"image,omitempty"`
	TBW       string    `json:"tbw,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func worldView(w *store.World) WorldView {
	return WorldView{
		ID:        w.ID,
		Name:      w.Name,
		Featured:  w.Featured,
		Version:   w.Version,
		Author:    w.Author,
		Image:     w.Image,
		TBW:       w.TBW,
		CreatedAt: w.CreatedAt,
	}
}

// CreateWorldRequest is the body for POST /api/worlds.
type CreateWorldRequest struct {
	Name    string `json:"name" binding:"required"`
	Version string `json:"version" binding:"required"`
	TBW     string `json:"tbw" binding:"required"`
	Image   string `json:"image"`
}

// WorldHandlers serves the world catalog.
type WorldHandlers struct {
	worlds store.WorldStore
	log    *zerolog.Logger
}

// NewWorldHandlers creates world handlers.
func NewWorldHandlers(worlds store.WorldStore, logger *zerolog.Logger) *WorldHandlers {
	return &WorldHandlers{worlds: worlds, log: logger}
}

// List handles GET /api/worlds. A featured=true/false query filters.
func (h *WorldHandlers) List(c *gin.Context) {
	var featured *bool
	if raw := c.Query("featured"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid featured"})
			return
		}
		featured = &parsed
	}

	worlds, err := h.worlds.ListWorlds(c.Request.Context(), featured)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list worlds")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list worlds"})
		return
	}

	views := make([]WorldView, 0, len(worlds))
	for _, w := range worlds {
		views = append(views, worldView(w))
	}
	c.JSON(http.StatusOK, gin.H{"worlds": views})
}

// Search handles GET /api/worlds/search?q=term.
func (h *WorldHandlers) Search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing search term"})
		return
	}

	worlds, err := h.worlds.SearchWorlds(c.Request.Context(), term)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to search worlds")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to search worlds"})
		return
	}

	views := make([]WorldView, 0, len(worlds))
	for _, w := range worlds {
		views = append(views, worldView(w))
	}
	c.JSON(http.StatusOK, gin.H{"worlds": views})
}

// Get handles GET /api/worlds/:id and includes the full TBW payload.
func (h *WorldHandlers) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid world id"})
		return
	}

	world, err := h.worlds.GetWorldByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "world not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to get world")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get world"})
		return
	}
	c.JSON(http.StatusOK, worldView(world))
}

// Create handles POST /api/worlds. Requires AuthMiddleware upstream;
// the authenticated username becomes the world's author.
func (h *WorldHandlers) Create(c *gin.Context) {
	_, username, ok := authedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "not authenticated"})
		return
	}

	var req CreateWorldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	world, err := h.worlds.CreateWorld(c.Request.Context(), &store.World{
		Name:    req.Name,
		Version: req.Version,
		Author:  username,
		Image:   req.Image,
		TBW:     req.TBW,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create world")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create world"})
		return
	}

	h.log.Info().Str("name", world.Name).Str("author", username).Msg("world published")
	c.JSON(http.StatusCreated, worldView(world))
}
