// Package repository persists end-of-session score submissions and serves
// the leaderboard.
package repository

import (
	"context"

	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/types"
)

// Store provides read/write access to submitted sessions.
type Store interface {
	// Submit persists a session summary. A session id that was already
	// submitted is ignored and reported as false.
	Submit(ctx context.Context, s model.SessionSummary) (bool, error)

	// Rank returns the leaderboard row of one session.
	// Returns ErrNotFound if the session is unknown.
	Rank(ctx context.Context, sessionID string) (types.Entry, error)

	// TopN returns the best n sessions: score desc, then max combo desc,
	// then earliest end. Equal score and combo share a rank.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) int

	Close() error
}
