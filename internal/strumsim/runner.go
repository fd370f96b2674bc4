package strumsim

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/airstrum/internal/adapters/audio"
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/schedule"
	"github.com/okian/airstrum/internal/engine"
	"github.com/okian/airstrum/pkg/logger"
)

// simEpoch anchors the virtual clock so runs are reproducible.
var simEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // fixed epoch

// Report summarizes one simulated session.
type Report struct {
	Summary  model.SessionSummary
	Ticks    int
	Strums   int
	Whiffs   int
	Outcomes []model.Outcome
}

// EngineConfig returns the engine tuning the simulator plays against.
func (c Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.SpawnInterval = c.SpawnInterval()
	if len(c.Labels) > 0 {
		ec.Labels = append([]string(nil), c.Labels...)
	}
	return ec
}

func (c Config) picker() schedule.LabelPicker {
	if len(c.Labels) > 0 {
		return schedule.NewSequencePicker(c.Labels...)
	}
	return schedule.NewRandomPicker(c.Seed)
}

// Run plays one session on a virtual clock and writes a line per outcome
// to w.
func Run(ctx context.Context, cfg Config, w io.Writer) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	ec := cfg.EngineConfig()
	eng, err := engine.New(ec, engine.WithPicker(cfg.picker()), engine.WithPlayerID(fmt.Sprintf("strumsim-%d", cfg.Seed)))
	if err != nil {
		return Report{}, fmt.Errorf("strumsim: %w", err)
	}

	var rec *audio.Recorder
	if cfg.Record != "" {
		rec = audio.NewRecorder(simEpoch, 0)
	}

	log := logger.Get().Named("strumsim")
	log.Info(ctx, "starting simulated session",
		logger.Int64("seed", cfg.Seed),
		logger.Duration("duration", cfg.Duration),
		logger.Float64("bpm", cfg.BPM),
		logger.Duration("jitter", cfg.Jitter),
		logger.Float64("skip", cfg.Skip),
	)

	player := NewPlayer(cfg.Seed, cfg.Jitter, cfg.Skip, ec.Zone, ec.DisplayWidth, ec.DisplayHeight)
	eng.Reset(simEpoch)

	var rep Report
	end := simEpoch.Add(cfg.Duration)
	for now := simEpoch; !now.After(end); now = now.Add(cfg.Tick) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		frame := player.Frame(now)
		res := eng.Tick(now, &frame)
		rep.Ticks++
		player.Watch(now, res.Notes, ec.HitZoneX(), ec.Speed)

		hit := false
		for _, o := range res.Outcomes {
			rep.Outcomes = append(rep.Outcomes, o)
			if o.Kind == model.OutcomeHit {
				hit = true
			}
			if rec != nil {
				if o.Kind == model.OutcomeHit {
					_ = rec.OnHit(ctx, o)
				} else {
					_ = rec.OnMiss(ctx, o)
				}
			}
			writeOutcome(w, now.Sub(simEpoch), o, res.Score)
		}
		if res.Strum != nil {
			rep.Strums++
			if !hit {
				rep.Whiffs++
			}
			if cfg.Verbose {
				fmt.Fprintf(w, "%8.3fs strum %-4s v=%.1f\n", now.Sub(simEpoch).Seconds(), res.Strum.Direction, res.Strum.Velocity)
			}
		}
	}

	rep.Summary, _ = eng.End(end)
	writeSummary(w, rep)

	if rec != nil {
		if err := rec.WriteFile(cfg.Record); err != nil {
			return rep, fmt.Errorf("strumsim: %w", err)
		}
		log.Info(ctx, "session recorded", logger.String("path", cfg.Record), logger.Int("events", rec.Len()))
	}
	return rep, nil
}

func writeOutcome(w io.Writer, at time.Duration, o model.Outcome, s model.ScoreState) { //nolint:gocritic // hugeParam
	if o.Kind == model.OutcomeHit {
		fmt.Fprintf(w, "%8.3fs hit   #%-3d %-3s %-7s +%d combo=%d score=%d\n",
			at.Seconds(), o.Note.ID, o.Note.Label, o.Rating, o.Award, s.Combo, s.Score)
		return
	}
	fmt.Fprintf(w, "%8.3fs miss  #%-3d %-3s combo=0 score=%d\n", at.Seconds(), o.Note.ID, o.Note.Label, s.Score)
}

func writeSummary(w io.Writer, rep Report) { //nolint:gocritic // hugeParam
	s := rep.Summary
	fmt.Fprintf(w, "\nsession %s (%s)\n", s.SessionID, s.PlayerID)
	fmt.Fprintf(w, "  score      %d\n", s.Score)
	fmt.Fprintf(w, "  max combo  %d\n", s.MaxCombo)
	fmt.Fprintf(w, "  perfect    %d\n", s.PerfectCount)
	fmt.Fprintf(w, "  great      %d\n", s.GreatCount)
	fmt.Fprintf(w, "  miss       %d\n", s.MissCount)
	fmt.Fprintf(w, "  strums     %d (%d whiffs)\n", rep.Strums, rep.Whiffs)
	fmt.Fprintf(w, "  duration   %.1fs over %d ticks\n", s.DurationSeconds(), rep.Ticks)
}
