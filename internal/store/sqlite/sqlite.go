package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/backworld/backworld-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT UNIQUE,
	password_hash TEXT NOT NULL,
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	session_id    TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_login    DATETIME,
	is_active     BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS player_stats (
	user_id          INTEGER PRIMARY KEY,
	kills            INTEGER NOT NULL DEFAULT 0,
	deaths           INTEGER NOT NULL DEFAULT 0,
	wins             INTEGER NOT NULL DEFAULT 0,
	losses           INTEGER NOT NULL DEFAULT 0,
	playtime_seconds INTEGER NOT NULL DEFAULT 0,
	matches_played   INTEGER NOT NULL DEFAULT 0,
	last_match       DATETIME,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS rooms (
	id              TEXT PRIMARY KEY,
	version         TEXT NOT NULL,
	host_user_id    INTEGER NOT NULL,
	host_username   TEXT NOT NULL,
	gamemode        TEXT NOT NULL,
	map_name        TEXT,
	max_players     INTEGER NOT NULL DEFAULT 8,
	current_players INTEGER NOT NULL DEFAULT 0,
	is_public       BOOLEAN NOT NULL DEFAULT 1,
	is_active       BOOLEAN NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	started_at      DATETIME,
	inactive_since  DATETIME,
	FOREIGN KEY (host_user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS player_sessions (
	user_id    INTEGER NOT NULL,
	room_id    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, room_id)
);

CREATE TABLE IF NOT EXISTS worlds (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	featured   BOOLEAN NOT NULL DEFAULT 0,
	version    TEXT NOT NULL,
	author     TEXT NOT NULL,
	image      TEXT NOT NULL,
	tbw        TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rooms_gamemode ON rooms(gamemode);
CREATE INDEX IF NOT EXISTS idx_rooms_is_active ON rooms(is_active);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE INDEX IF NOT EXISTS idx_sessions_room ON player_sessions(room_id);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON player_sessions(user_id);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `id, username, COALESCE(email, ''), password_hash, is_guest, COALESCE(session_id, ''), created_at, last_login, is_active`

func scanUser(row interface{ Scan(...any) error }) (*store.User, error) {
	var user store.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
		&lastLogin,
		&user.IsActive,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return &user, nil
}

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, is_guest)
		VALUES (?, ?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, sessionID string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_guest, session_id)
		VALUES (?, '', 1, ?)
	`
	guestUsername := "guest_" + sessionID[:8]

	result, err := s.db.ExecContext(ctx, query, guestUsername, sessionID)
	if err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ? AND is_guest = 0`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? AND is_guest = 0`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserBySessionID retrieves a guest user by session ID.
func (s *SQLiteStore) GetUserBySessionID(ctx context.Context, sessionID string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE session_id = ? AND is_guest = 1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query guest user: %w", err)
	}
	return user, nil
}

// ListUsers lists all active accounts.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = 1 AND is_guest = 0 ORDER BY username`
	return s.queryUsers(ctx, query)
}

// ListOnlineUsers lists accounts whose last login is after the cutoff.
func (s *SQLiteStore) ListOnlineUsers(ctx context.Context, since time.Time) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE last_login IS NOT NULL AND last_login >= ? ORDER BY last_login DESC`
	return s.queryUsers(ctx, query, since)
}

func (s *SQLiteStore) queryUsers(ctx context.Context, query string, args ...any) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateLastLogin stamps the user's last login time.
func (s *SQLiteStore) UpdateLastLogin(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// ==== RoomStore implementation ====

const roomColumns = `id, version, host_user_id, host_username, gamemode, map_name, max_players, current_players, is_public, is_active, created_at, started_at, inactive_since`

func scanRoom(row interface{ Scan(...any) error }) (*store.Room, error) {
	var room store.Room
	var mapName sql.NullString
	var startedAt, inactiveSince sql.NullTime
	err := row.Scan(
		&room.ID,
		&room.Version,
		&room.HostUserID,
		&room.HostUsername,
		&room.Gamemode,
		&mapName,
		&room.MaxPlayers,
		&room.CurrentPlayers,
		&room.IsPublic,
		&room.IsActive,
		&room.CreatedAt,
		&startedAt,
		&inactiveSince,
	)
	if err != nil {
		return nil, err
	}
	if mapName.Valid {
		room.MapName = &mapName.String
	}
	if startedAt.Valid {
		room.StartedAt = &startedAt.Time
	}
	if inactiveSince.Valid {
		room.InactiveSince = &inactiveSince.Time
	}
	return &room, nil
}

// CreateRoom inserts a new room row with zero occupancy.
func (s *SQLiteStore) CreateRoom(ctx context.Context, input store.CreateRoomInput) (*store.Room, error) {
	maxPlayers := input.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = 8
	}
	query := `
		INSERT INTO rooms (id, version, host_user_id, host_username, gamemode, map_name, max_players, current_players, is_public)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		input.ID,
		input.Version,
		input.HostUserID,
		input.HostUsername,
		input.Gamemode,
		input.MapName,
		maxPlayers,
		input.IsPublic,
	)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return s.GetRoomByID(ctx, input.ID)
}

// GetRoomByID retrieves a room by its join code.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// ListActiveRooms lists active public rooms, optionally filtered by gamemode.
func (s *SQLiteStore) ListActiveRooms(ctx context.Context, gamemode string) ([]*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE is_active = 1 AND is_public = 1`
	args := []any{}
	if gamemode != "" {
		query += ` AND gamemode = ?`
		args = append(args, gamemode)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// UpdatePlayerCount overwrites the stored occupancy for a room.
func (s *SQLiteStore) UpdatePlayerCount(ctx context.Context, roomID string, count int) error {
	query := `UPDATE rooms SET current_players = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, count, roomID); err != nil {
		return fmt.Errorf("update player count: %w", err)
	}
	return nil
}

// SetRoomActive marks a room active or inactive.
func (s *SQLiteStore) SetRoomActive(ctx context.Context, roomID string, active bool) error {
	query := `
		UPDATE rooms
		SET is_active = ?,
		    inactive_since = CASE WHEN ? THEN NULL ELSE CURRENT_TIMESTAMP END
		WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, active, active, roomID); err != nil {
		return fmt.Errorf("set room active: %w", err)
	}
	return nil
}

// SetRoomStarted stamps the room's match start time.
func (s *SQLiteStore) SetRoomStarted(ctx context.Context, roomID string) error {
	query := `UPDATE rooms SET started_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, roomID); err != nil {
		return fmt.Errorf("set room started: %w", err)
	}
	return nil
}

// DeleteRoom removes a room row entirely.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// ExpireInactiveRooms deletes rooms inactive for longer than the cutoff.
func (s *SQLiteStore) ExpireInactiveRooms(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM rooms
		WHERE is_active = 0
		  AND inactive_since IS NOT NULL
		  AND inactive_since < ?
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("expire rooms: %w", err)
	}
	return result.RowsAffected()
}

// ==== SessionStore implementation ====

// AddSession inserts a session row for the user in the given room.
func (s *SQLiteStore) AddSession(ctx context.Context, userID int64, roomID string) error {
	query := `INSERT OR IGNORE INTO player_sessions (user_id, room_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, userID, roomID); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RemoveSession deletes the user's session row for the given room.
func (s *SQLiteStore) RemoveSession(ctx context.Context, userID int64, roomID string) error {
	query := `DELETE FROM player_sessions WHERE user_id = ? AND room_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, roomID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RemoveSessionsForUser deletes any session rows for the user.
func (s *SQLiteStore) RemoveSessionsForUser(ctx context.Context, userID int64) error {
	query := `DELETE FROM player_sessions WHERE user_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// CountSessions counts session rows referencing a room.
func (s *SQLiteStore) CountSessions(ctx context.Context, roomID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM player_sessions WHERE room_id = ?`
	if err := s.db.QueryRowContext(ctx, query, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// SessionRoomID returns the room the user currently has a session in, or "".
func (s *SQLiteStore) SessionRoomID(ctx context.Context, userID int64) (string, error) {
	var roomID string
	query := `SELECT room_id FROM player_sessions WHERE user_id = ? LIMIT 1`
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query session: %w", err)
	}
	return roomID, nil
}

// ==== StatsStore implementation ====

const statsColumns = `ps.user_id, u.username, ps.kills, ps.deaths, ps.wins, ps.losses, ps.playtime_seconds, ps.matches_played, ps.last_match`

func scanStats(row interface{ Scan(...any) error }) (*store.PlayerStats, error) {
	var st store.PlayerStats
	var lastMatch sql.NullTime
	err := row.Scan(
		&st.UserID,
		&st.Username,
		&st.Kills,
		&st.Deaths,
		&st.Wins,
		&st.Losses,
		&st.PlaytimeSeconds,
		&st.MatchesPlayed,
		&lastMatch,
	)
	if err != nil {
		return nil, err
	}
	if lastMatch.Valid {
		st.LastMatch = &lastMatch.Time
	}
	return &st, nil
}

// EnsureStats creates an empty stats row for the user if absent.
func (s *SQLiteStore) EnsureStats(ctx context.Context, userID int64) error {
	query := `INSERT OR IGNORE INTO player_stats (user_id) VALUES (?)`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure stats: %w", err)
	}
	return nil
}

// GetStatsByUsername retrieves stats for a named account.
func (s *SQLiteStore) GetStatsByUsername(ctx context.Context, username string) (*store.PlayerStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM player_stats ps
		JOIN users u ON u.id = ps.user_id
		WHERE u.username = ?
	`
	st, err := scanStats(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

// ListTopStats lists the leaderboard ordered by wins.
func (s *SQLiteStore) ListTopStats(ctx context.Context, limit int) ([]*store.PlayerStats, error) {
	if limit <= 0 {
		limit = 25
	}
	query := `
		SELECT ` + statsColumns + `
		FROM player_stats ps
		JOIN users u ON u.id = ps.user_id
		ORDER BY ps.wins DESC, ps.kills DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	stats := make([]*store.PlayerStats, 0, limit)
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// RecordMatchPlayed bumps matches_played and stamps last_match.
func (s *SQLiteStore) RecordMatchPlayed(ctx context.Context, userID int64) error {
	if err := s.EnsureStats(ctx, userID); err != nil {
		return err
	}
	query := `
		UPDATE player_stats
		SET matches_played = matches_played + 1, last_match = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("record match: %w", err)
	}
	return nil
}

// ==== WorldStore implementation ====

// CreateWorld inserts a world and returns it with its assigned ID.
func (s *SQLiteStore) CreateWorld(ctx context.Context, w *store.World) (*store.World, error) {
	query := `
		INSERT INTO worlds (name, featured, version, author, image, tbw)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, w.Name, w.Featured, w.Version, w.Author, w.Image, w.TBW)
	if err != nil {
		return nil, fmt.Errorf("insert world: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetWorldByID(ctx, id)
}

// GetWorldByID retrieves a world with its full TBW payload.
func (s *SQLiteStore) GetWorldByID(ctx context.Context, id int64) (*store.World, error) {
	query := `SELECT id, name, featured, version, author, image, tbw, created_at FROM worlds WHERE id = ?`
	var w store.World
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&w.ID, &w.Name, &w.Featured, &w.Version, &w.Author, &w.Image, &w.TBW, &w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query world: %w", err)
	}
	return &w, nil
}

// ListWorlds lists worlds without TBW payloads. featured filters when non-nil.
func (s *SQLiteStore) ListWorlds(ctx context.Context, featured *bool) ([]*store.World, error) {
	query := `SELECT id, name, featured, version, author, image, '', created_at FROM worlds`
	args := []any{}
	if featured != nil {
		query += ` WHERE featured = ?`
		args = append(args, *featured)
	}
	query += ` ORDER BY created_at DESC`
	return s.queryWorlds(ctx, query, args...)
}

// SearchWorlds matches worlds by name or author substring.
func (s *SQLiteStore) SearchWorlds(ctx context.Context, term string) ([]*store.World, error) {
	query := `
		SELECT id, name, featured, version, author, image, '', created_at
		FROM worlds
		WHERE name LIKE ? OR author LIKE ?
		ORDER BY created_at DESC
	`
	pattern := "%" + term + "%"
	return s.queryWorlds(ctx, query, pattern, pattern)
}

func (s *SQLiteStore) queryWorlds(ctx context.Context, query string, args ...any) ([]*store.World, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query worlds: %w", err)
	}
	defer rows.Close()

	worlds := make([]*store.World, 0)
	for rows.Next() {
		var w store.World
		if err := rows.Scan(&w.ID, &w.Name, &w.Featured, &w.Version, &w.Author, &w.Image, &w.TBW, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan world: %w", err)
		}
		worlds = append(worlds, &w)
	}
	return worlds, rows.Err()
}
