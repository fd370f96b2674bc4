// Package types contains wire shapes shared by adapters.
package types

// Submission is the score record sent when a session ends.
type Submission struct {
	PlayerID     string `json:"player_id"`
	Score        int    `json:"score"`
	MaxCombo     int    `json:"max_combo"`
	PerfectCount int    `json:"perfect_count"`
	GreatCount   int    `json:"great_count"`
	MissCount    int    `json:"miss_count"`
}

// Entry represents a leaderboard row.
type Entry struct {
	Rank      int     `json:"rank"`
	SessionID string  `json:"session_id"`
	Duration  float64 `json:"duration_seconds"`
	Submission
}
