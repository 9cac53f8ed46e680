package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/backworld/backworld-server/internal/store"
)

// ReconcilerStore is the slice of storage the reconciler needs.
type ReconcilerStore interface {
	store.SessionStore

	GetRoomByID(ctx context.Context, id string) (*store.Room, error)
	UpdatePlayerCount(ctx context.Context, roomID string, count int) error
	SetRoomActive(ctx context.Context, roomID string, active bool) error
}

// Reconciler keeps the durable session table consistent with live room
// membership and enforces one active room per account. Occupancy is always
// recomputed from the session rows themselves: the room catalog is also
// written by the REST API, and counting source rows self-heals any drift a
// cached counter would accumulate.
type Reconciler struct {
	store ReconcilerStore
	log   *zerolog.Logger
}

// NewReconciler builds a reconciler over the given storage.
func NewReconciler(st ReconcilerStore, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{store: st, log: logger}
}

// Attach binds the account to a room. Any session in a different room is
// replaced first, and both rooms' occupancy is recomputed from rows.
func (rc *Reconciler) Attach(ctx context.Context, accountID int64, roomID string) error {
	old, err := rc.store.SessionRoomID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}

	if old != "" && old != roomID {
		if err := rc.store.RemoveSessionsForUser(ctx, accountID); err != nil {
			return fmt.Errorf("remove stale session: %w", err)
		}
		if err := rc.syncOccupancy(ctx, old); err != nil {
			return err
		}
		rc.log.Debug().Int64("account_id", accountID).Str("old_room", old).Str("room", roomID).Msg("replaced session")
	}

	if err := rc.store.AddSession(ctx, accountID, roomID); err != nil {
		return fmt.Errorf("add session: %w", err)
	}
	return rc.syncOccupancy(ctx, roomID)
}

// Detach removes the account's session in the room and recomputes
// occupancy. An emptied room is marked inactive, not deleted, so its
// record survives for later lookup.
func (rc *Reconciler) Detach(ctx context.Context, accountID int64, roomID string) error {
	if err := rc.store.RemoveSession(ctx, accountID, roomID); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return rc.syncOccupancy(ctx, roomID)
}

// CurrentRoomOf returns the active room the account has a session in, or
// nil when it has none.
func (rc *Reconciler) CurrentRoomOf(ctx context.Context, accountID int64) (*store.Room, error) {
	roomID, err := rc.store.SessionRoomID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if roomID == "" {
		return nil, nil
	}

	room, err := rc.store.GetRoomByID(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		// Orphaned session row; drop it so the account can move on.
		if delErr := rc.store.RemoveSessionsForUser(ctx, accountID); delErr != nil {
			rc.log.Warn().Err(delErr).Int64("account_id", accountID).Msg("failed to drop orphaned session")
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup room: %w", err)
	}
	if !room.IsActive {
		return nil, nil
	}
	return room, nil
}

func (rc *Reconciler) syncOccupancy(ctx context.Context, roomID string) error {
	count, err := rc.store.CountSessions(ctx, roomID)
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	if err := rc.store.UpdatePlayerCount(ctx, roomID, count); err != nil {
		return fmt.Errorf("update occupancy: %w", err)
	}
	if err := rc.store.SetRoomActive(ctx, roomID, count > 0); err != nil {
		return fmt.Errorf("set room active: %w", err)
	}
	return nil
}
