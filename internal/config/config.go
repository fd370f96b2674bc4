// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat and snake_case so env vars map onto them directly.
// - Engine tunables are converted with Engine() and validated there.
package config

import (
	"runtime"
	"time"

	"github.com/okian/airstrum/internal/domain/strum"
	"github.com/okian/airstrum/internal/engine"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// TickIntervalMS is the engine tick period.
	TickIntervalMS int `koanf:"tick_interval_ms"`

	// OutcomeQueueSize bounds the in-memory outcome queue.
	OutcomeQueueSize int `koanf:"outcome_queue_size"`

	// WorkerCount sets the number of outcome dispatchers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many recent chord messages are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// DBPath is the sqlite file for score submissions. ":memory:" keeps
	// them in process.
	DBPath string `koanf:"db_path"`

	// MIDIPort selects an output port by name substring. Empty logs notes
	// instead of playing them.
	MIDIPort    string `koanf:"midi_port"`
	MIDIChannel int    `koanf:"midi_channel"`

	// RecordPath, when set, writes every session's outcomes to a standard
	// MIDI file on shutdown.
	RecordPath string `koanf:"record_path"`

	// PlayerID attributes sessions; empty generates an anonymous id.
	PlayerID string `koanf:"player_id"`

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Engine tunables.
	DisplayWidth      float64  `koanf:"display_width"`
	DisplayHeight     float64  `koanf:"display_height"`
	WristGate         float64  `koanf:"wrist_gate"`
	Mirror            bool     `koanf:"mirror"`
	ZoneMinX          float64  `koanf:"zone_min_x"`
	ZoneMinY          float64  `koanf:"zone_min_y"`
	ZoneMaxX          float64  `koanf:"zone_max_x"`
	ZoneMaxY          float64  `koanf:"zone_max_y"`
	VelocityThreshold float64  `koanf:"velocity_threshold"`
	DebounceMS        int      `koanf:"debounce_ms"`
	SpawnIntervalMS   int      `koanf:"spawn_interval_ms"`
	NoteSpeed         float64  `koanf:"note_speed"`
	TrackStart        float64  `koanf:"track_start"`
	MaxTickElapsedMS  int      `koanf:"max_tick_elapsed_ms"`
	Labels            []string `koanf:"labels"`
	HitZoneOffset     float64  `koanf:"hit_zone_offset"`
	HitWindow         float64  `koanf:"hit_window"`
	RetireMargin      float64  `koanf:"retire_margin"`
}

// New creates a Config populated with defaults.
func New() *Config {
	e := engine.DefaultConfig()
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		TickIntervalMS:      16,
		OutcomeQueueSize:    1024,
		WorkerCount:         max(2, runtime.NumCPU()/2),
		DedupeSize:          4096,
		DBPath:              "airstrum.db",
		MIDIChannel:         0,
		AllowedOrigins:      []string{"*"},
		MaxLeaderboardLimit: 100,
		DisplayWidth:        e.DisplayWidth,
		DisplayHeight:       e.DisplayHeight,
		WristGate:           e.WristGate,
		Mirror:              e.Mirror,
		ZoneMinX:            e.Zone.MinX,
		ZoneMinY:            e.Zone.MinY,
		ZoneMaxX:            e.Zone.MaxX,
		ZoneMaxY:            e.Zone.MaxY,
		VelocityThreshold:   e.VelocityThreshold,
		DebounceMS:          int(e.Debounce / time.Millisecond),
		SpawnIntervalMS:     int(e.SpawnInterval / time.Millisecond),
		NoteSpeed:           e.Speed,
		TrackStart:          e.TrackStart,
		MaxTickElapsedMS:    int(e.MaxTickElapsed / time.Millisecond),
		Labels:              e.Labels,
		HitZoneOffset:       e.HitZoneOffset,
		HitWindow:           e.HitWindow,
		RetireMargin:        e.RetireMargin,
	}
	return c
}

// TickInterval is the engine tick period as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// Engine converts the tunables to an engine configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		DisplayWidth:      c.DisplayWidth,
		DisplayHeight:     c.DisplayHeight,
		WristGate:         c.WristGate,
		Mirror:            c.Mirror,
		Zone:              strum.Zone{MinX: c.ZoneMinX, MinY: c.ZoneMinY, MaxX: c.ZoneMaxX, MaxY: c.ZoneMaxY},
		VelocityThreshold: c.VelocityThreshold,
		Debounce:          time.Duration(c.DebounceMS) * time.Millisecond,
		SpawnInterval:     time.Duration(c.SpawnIntervalMS) * time.Millisecond,
		Speed:             c.NoteSpeed,
		TrackStart:        c.TrackStart,
		MaxTickElapsed:    time.Duration(c.MaxTickElapsedMS) * time.Millisecond,
		Labels:            append([]string(nil), c.Labels...),
		HitZoneOffset:     c.HitZoneOffset,
		HitWindow:         c.HitWindow,
		RetireMargin:      c.RetireMargin,
	}
}
