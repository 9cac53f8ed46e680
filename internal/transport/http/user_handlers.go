package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/store"
)

// UserHandlers serves the user directory.
type UserHandlers struct {
	users store.UserStore
	log   *zerolog.Logger
}

// NewUserHandlers creates user handlers.
func NewUserHandlers(users store.UserStore, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{users: users, log: logger}
}

// List handles GET /api/users.
func (h *UserHandlers) List(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list users"})
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

// Online handles GET /api/users/online. The window query bounds how
// recently a user must have logged in to count as online, in minutes.
func (h *UserHandlers) Online(c *gin.Context) {
	window := 15
	if raw := c.Query("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid window"})
			return
		}
		window = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(window) * time.Minute)
	users, err := h.users.ListOnlineUsers(c.Request.Context(), since)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list online users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list online users"})
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": views, "count": len(views)})
}
