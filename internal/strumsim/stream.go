package strumsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/airstrum/internal/adapters/audio"
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/pkg/logger"
	"golang.org/x/net/websocket"
)

const httpTimeout = 10 * time.Second

// Client talks to a running airstrum service.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for base, e.g. "http://localhost:9080".
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: httpTimeout},
	}
}

func (c *Client) post(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return out, nil
}

// NewSession asks the service to start a fresh session.
func (c *Client) NewSession(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/session/new")
}

// EndSession ends the running session and returns its summary.
func (c *Client) EndSession(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/session/end")
}

// Dial opens a websocket channel such as "/ws/frames".
func (c *Client) Dial(path string) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(c.base, "http") + path
	conn, err := websocket.Dial(url, "", c.base)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return conn, nil
}

// Fingering places one string of a chord_change message.
type Fingering struct {
	String int `json:"string"`
	Fret   int `json:"fret"`
}

// ChordChange is the chord channel message announcing a held chord.
type ChordChange struct {
	Type      string      `json:"type"`
	Chord     string      `json:"chord"`
	Fingering []Fingering `json:"fingering"`
	Timestamp int64       `json:"timestamp"`
}

// ChordMessage builds a chord_change message for a built-in chord shape.
func ChordMessage(label string, at time.Time) (ChordChange, bool) {
	shape, ok := audio.Shape(label)
	if !ok {
		return ChordChange{}, false
	}
	msg := ChordChange{Type: "chord_change", Chord: label, Timestamp: at.UnixMilli()}
	for slot, s := range shape {
		str := model.StringCount - slot
		switch s.Kind {
		case model.Muted:
			msg.Fingering = append(msg.Fingering, Fingering{String: str, Fret: -1})
		case model.Fretted:
			msg.Fingering = append(msg.Fingering, Fingering{String: str, Fret: s.Fret})
		}
	}
	return msg, true
}

// Stream plays one real-time session against the service at c. The
// player cannot see the service's notes, so it strums on the beat the
// scheduler is expected to keep.
func Stream(ctx context.Context, c *Client, cfg Config, w io.Writer) (map[string]any, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("strumsim")
	ec := cfg.EngineConfig()

	frames, err := c.Dial("/ws/frames")
	if err != nil {
		return nil, err
	}
	defer frames.Close()
	chords, err := c.Dial("/ws/chords")
	if err != nil {
		return nil, err
	}
	defer chords.Close()

	label := "G"
	if len(cfg.Labels) > 0 {
		label = cfg.Labels[0]
	}
	if msg, ok := ChordMessage(label, time.Now()); ok {
		if err := websocket.JSON.Send(chords, msg); err != nil {
			return nil, fmt.Errorf("send chord: %w", err)
		}
	}

	sess, err := c.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	log.Info(ctx, "streaming session", logger.Any("session_id", sess["session_id"]), logger.Duration("duration", cfg.Duration))

	player := NewPlayer(cfg.Seed, cfg.Jitter, cfg.Skip, ec.Zone, ec.DisplayWidth, ec.DisplayHeight)
	travel := time.Duration((ec.HitZoneX() - ec.TrackStart) / ec.Speed * float64(time.Second))
	// The scheduler spawns on the first tick after the interval elapses.
	beat := cfg.SpawnInterval() + cfg.Tick/2
	for at := start.Add(travel); at.Before(start.Add(cfg.Duration)); at = at.Add(beat) {
		player.Aim(at)
	}

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()
	deadline := time.NewTimer(cfg.Duration)
	defer deadline.Stop()

	sent := 0
loop:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			break loop
		case now := <-ticker.C:
			if err := websocket.JSON.Send(frames, player.Frame(now)); err != nil {
				return nil, fmt.Errorf("send frame: %w", err)
			}
			sent++
		}
	}

	summary, err := c.EndSession(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "sent %d frames over %s\n", sent, time.Since(start).Round(time.Millisecond))
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Fprintf(w, "%s\n", out)
	return summary, nil
}
