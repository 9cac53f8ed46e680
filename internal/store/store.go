package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents an account in the system.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
	LastLogin    *time.Time
	IsActive     bool
}

// Room is the durable record of a hosted session. ID is the short join code;
// CurrentPlayers is always recomputed from player_sessions rows, never
// incremented in place.
type Room struct {
	ID             string
	Version        string
	HostUserID     int64
	HostUsername   string
	Gamemode       string
	MapName        *string
	MaxPlayers     int
	CurrentPlayers int
	IsPublic       bool
	IsActive       bool
	CreatedAt      time.Time
	StartedAt      *time.Time
	InactiveSince  *time.Time
}

// CreateRoomInput carries the fields needed to insert a room row.
type CreateRoomInput struct {
	ID           string
	Version      string
	HostUserID   int64
	HostUsername string
	Gamemode     string
	MapName      *string
	MaxPlayers   int
	IsPublic     bool
}

// PlayerStats aggregates per-account match statistics.
type PlayerStats struct {
	UserID          int64
	Username        string
	Kills           int64
	Deaths          int64
	Wins            int64
	Losses          int64
	PlaytimeSeconds int64
	MatchesPlayed   int64
	LastMatch       *time.Time
}

// World is a published map in the catalog. TBW holds the raw world file.
type World struct {
	ID        int64
	Name      string
	Featured  bool
	Version   string
	Author    string
	Image     string
	TBW       string
	CreatedAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserBySessionID retrieves a guest user by session ID.
	GetUserBySessionID(ctx context.Context, sessionID string) (*User, error)

	// ListUsers lists all active accounts.
	ListUsers(ctx context.Context) ([]*User, error)

	// ListOnlineUsers lists accounts whose last login is after the cutoff.
	ListOnlineUsers(ctx context.Context, since time.Time) ([]*User, error)

	// UpdateLastLogin stamps the user's last login time.
	UpdateLastLogin(ctx context.Context, id int64) error
}

// RoomStore handles the durable room catalog.
type RoomStore interface {
	// CreateRoom inserts a new room row with zero occupancy.
	CreateRoom(ctx context.Context, input CreateRoomInput) (*Room, error)

	// GetRoomByID retrieves a room by its join code.
	GetRoomByID(ctx context.Context, id string) (*Room, error)

	// ListActiveRooms lists active public rooms, optionally filtered by gamemode.
	ListActiveRooms(ctx context.Context, gamemode string) ([]*Room, error)

	// UpdatePlayerCount overwrites the stored occupancy for a room.
	UpdatePlayerCount(ctx context.Context, roomID string, count int) error

	// SetRoomActive marks a room active or inactive. Deactivation stamps
	// inactive_since so the expiry sweep can find it later.
	SetRoomActive(ctx context.Context, roomID string, active bool) error

	// SetRoomStarted stamps the room's match start time.
	SetRoomStarted(ctx context.Context, roomID string) error

	// DeleteRoom removes a room row entirely.
	DeleteRoom(ctx context.Context, roomID string) error

	// ExpireInactiveRooms deletes rooms inactive for longer than the cutoff.
	// Returns the number of rows removed.
	ExpireInactiveRooms(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SessionStore handles the player_sessions rows binding one account to at
// most one room. Callers recompute occupancy with CountSessions instead of
// trusting any cached counter.
type SessionStore interface {
	// AddSession inserts a session row for the user in the given room.
	AddSession(ctx context.Context, userID int64, roomID string) error

	// RemoveSession deletes the user's session row for the given room.
	RemoveSession(ctx context.Context, userID int64, roomID string) error

	// RemoveSessionsForUser deletes any session rows for the user.
	RemoveSessionsForUser(ctx context.Context, userID int64) error

	// CountSessions counts session rows referencing a room.
	CountSessions(ctx context.Context, roomID string) (int, error)

	// SessionRoomID returns the room the user currently has a session in,
	// or "" if none.
	SessionRoomID(ctx context.Context, userID int64) (string, error)
}

// StatsStore handles per-player match statistics.
type StatsStore interface {
	// EnsureStats creates an empty stats row for the user if absent.
	EnsureStats(ctx context.Context, userID int64) error

	// GetStatsByUsername retrieves stats for a named account.
	GetStatsByUsername(ctx context.Context, username string) (*PlayerStats, error)

	// ListTopStats lists the leaderboard ordered by wins.
	ListTopStats(ctx context.Context, limit int) ([]*PlayerStats, error)

	// RecordMatchPlayed bumps matches_played and stamps last_match.
	RecordMatchPlayed(ctx context.Context, userID int64) error
}

// WorldStore handles the published world catalog.
type WorldStore interface {
	// CreateWorld inserts a world and returns it with its assigned ID.
	CreateWorld(ctx context.Context, w *World) (*World, error)

	// GetWorldByID retrieves a world with its full TBW payload.
	GetWorldByID(ctx context.Context, id int64) (*World, error)

	// ListWorlds lists worlds without TBW payloads. featured filters when non-nil.
	ListWorlds(ctx context.Context, featured *bool) ([]*World, error)

	// SearchWorlds matches worlds by name or author substring.
	SearchWorlds(ctx context.Context, term string) ([]*World, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	SessionStore
	StatsStore
	WorldStore

	// Close closes the underlying database connection.
	Close() error
}
