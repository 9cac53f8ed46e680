package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/store"
)

// StatsView is the public shape of a player's match statistics.
type StatsView struct {
	UserID          int64      `json:"userId"`
	Username        string     `json:"username"`
	Kills           int64      `json:"kills"`
	Deaths          int64      `json:"deaths"`
	Wins            int64      `json:"wins"`
	Losses          int64      `json:"losses"`
	PlaytimeSeconds int64      `json:"playtimeSeconds"`
	MatchesPlayed   int64      `json:"matchesPlayed"`
	LastMatch       *time.Time `json:"lastMatch"`
}

func statsView(s *store.PlayerStats) StatsView {
	return StatsView{
		UserID:          s.UserID,
		Username:        s.Username,
		Kills:           s.Kills,
		Deaths:          s.Deaths,
		Wins:            s.Wins,
		Losses:          s.Losses,
		PlaytimeSeconds: s.PlaytimeSeconds,
		MatchesPlayed:   s.MatchesPlayed,
		LastMatch:       s.LastMatch,
	}
}

// StatsHandlers serves the player stats leaderboard.
type StatsHandlers struct {
	stats store.StatsStore
	log   *zerolog.Logger
}

// NewStatsHandlers creates stats handlers.
func NewStatsHandlers(stats store.StatsStore, logger *zerolog.Logger) *StatsHandlers {
	return &StatsHandlers{stats: stats, log: logger}
}

// Top handles GET /api/stats/top.
func (h *StatsHandlers) Top(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	rows, err := h.stats.ListTopStats(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list top stats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list stats"})
		return
	}

	views := make([]StatsView, 0, len(rows))
	for _, s := range rows {
		views = append(views, statsView(s))
	}
	c.JSON(http.StatusOK, gin.H{"stats": views})
}

// ByUsername handles GET /api/stats/:username.
func (h *StatsHandlers) ByUsername(c *gin.Context) {
	stats, err := h.stats.GetStatsByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "stats not found"})
			return
		}
		h.log.Error().Err(err).Msg("failed to get stats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get stats"})
		return
	}
	c.JSON(http.StatusOK, statsView(stats))
}
