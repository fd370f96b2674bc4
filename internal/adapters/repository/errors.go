package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrInvalid      = errors.New("invalid submission")
)
