package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/auth"
	"github.com/backworld/backworld-server/internal/store"
)

// ErrorResponse is the JSON body for failed API requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRequest is the body for POST /api/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the body for POST /api/login.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned on successful register, login and guest calls.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

// UserView is the public shape of a user account.
type UserView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsGuest   bool      `json:"isGuest"`
	CreatedAt time.Time `json:"createdAt"`
}

func userView(u *store.User) UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsGuest:   u.IsGuest,
		CreatedAt: u.CreatedAt,
	}
}

// APIHandlers serves account registration, login and token verification.
type APIHandlers struct {
	authService *auth.Service
	stats       store.StatsStore
	log         *zerolog.Logger
}

// NewAPIHandlers creates API handlers backed by the auth service.
func NewAPIHandlers(authService *auth.Service, stats store.StatsStore, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{authService: authService, stats: stats, log: logger}
}

// Register handles POST /api/register.
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.log.Debug().Err(err).Str("username", req.Username).Msg("registration rejected")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.stats.EnsureStats(c.Request.Context(), user.ID); err != nil {
		h.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to seed player stats")
	}

	h.log.Info().Str("username", user.Username).Int64("user_id", user.ID).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: userView(user)})
}

// Login handles POST /api/login.
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		h.log.Debug().Str("login", req.Login).Msg("login rejected")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}

	h.log.Info().Str("username", user.Username).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: userView(user)})
}

// Guest handles POST /api/guest. It creates a throwaway account and
// sets the token as a cookie so browser clients can reconnect.
func (h *APIHandlers) Guest(c *gin.Context) {
	token, user, err := h.authService.CreateGuestUser(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create guest user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create guest session"})
		return
	}

	c.SetCookie("session_token", token, int((24 * time.Hour).Seconds()), "/", "", false, true)

	h.log.Info().Str("username", user.Username).Msg("guest session created")
	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: userView(user)})
}

// Verify handles GET /api/verify. It requires AuthMiddleware upstream.
func (h *APIHandlers) Verify(c *gin.Context) {
	userID, username, ok := authedUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "not authenticated"})
		return
	}
	isGuest, _ := c.Get(ContextKeyIsGuest)
	guest, _ := isGuest.(bool)

	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"userId":   userID,
		"username": username,
		"isGuest":  guest,
	})
}
