package vi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kip93/3T-VI/pkg/game"
	"github.com/rs/zerolog/log"
)

// Names of the two self-play agents.
const (
	NameO = "3T-VI O"
	NameX = "3T-VI X"
)

// TrainingConfig specifies parameters for self-play training
type TrainingConfig struct {
	Episodes       int           // Number of matches, 0 means until ctx is cancelled
	ReportInterval int           // How often to report progress
	Delay          time.Duration // Pause before every move
	Options        []Option      // Options shared by both agents
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Episodes:       0,
		ReportInterval: 1000,
	}
}

// TrainingStats tracks metrics during training
type TrainingStats struct {
	game.Score
	TotalMoves int
	StartTime  time.Time
}

// Train makes NameO and NameX play each other, training and saving both after
// every match. It returns the final stats; a cancelled ctx ends training
// without error.
func Train(ctx context.Context, config TrainingConfig) (TrainingStats, error) {
	stats := TrainingStats{StartTime: time.Now()}
	if config.ReportInterval <= 0 {
		return stats, fmt.Errorf("report interval must be greater than 0")
	}
	if config.Episodes < 0 {
		return stats, fmt.Errorf("episodes must not be negative")
	}

	o, err := New(ctx, NameO, config.Options...)
	if err != nil {
		return stats, fmt.Errorf("failed to create %s: %w", NameO, err)
	}
	x, err := New(ctx, NameX, config.Options...)
	if err != nil {
		return stats, fmt.Errorf("failed to create %s: %w", NameX, err)
	}

	runner := game.NewRunner(o, x)
	runner.Delay = config.Delay

	log.Info().
		Int("episodes", config.Episodes).
		Int("report", config.ReportInterval).
		Dur("delay", config.Delay).
		Float64("epsilon_o", o.Epsilon()).
		Float64("epsilon_x", x.Epsilon()).
		Msg("starting self-play training")

	lastReport, lastEpisode := time.Now(), 0
	for episode := 0; config.Episodes == 0 || episode < config.Episodes; episode++ {
		record, err := runner.Run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info().Msg("training interrupted")
			break
		}
		if err != nil {
			return stats, err
		}
		stats.Score = runner.Score()
		stats.TotalMoves += len(record.Moves)

		if (episode+1)%config.ReportInterval == 0 || episode+1 == config.Episodes {
			report(stats, config, episode+1, episode+1-lastEpisode, time.Since(lastReport), o, x)
			lastReport, lastEpisode = time.Now(), episode+1
		}
	}

	log.Info().
		Int("matches", stats.Total()).
		Int("o_wins", stats.AWins).
		Int("x_wins", stats.BWins).
		Int("ties", stats.Ties).
		Str("elapsed", formatDuration(time.Since(stats.StartTime))).
		Msg("training completed")
	return stats, nil
}

func report(stats TrainingStats, config TrainingConfig, done, played int, elapsed time.Duration, o, x *Agent) {
	total := float64(stats.Total())
	rate := float64(played) / elapsed.Seconds()
	event := log.Info().
		Int("match", done).
		Float64("o_win_pct", float64(stats.AWins)/total*100).
		Float64("x_win_pct", float64(stats.BWins)/total*100).
		Float64("tie_pct", float64(stats.Ties)/total*100).
		Float64("avg_moves", float64(stats.TotalMoves)/total).
		Float64("epsilon_o", o.Epsilon()).
		Float64("epsilon_x", x.Epsilon()).
		Float64("matches_per_sec", rate).
		Str("elapsed", formatDuration(time.Since(stats.StartTime)))

	if config.Episodes > 0 {
		if d, ok := eta(config.Episodes-done, rate); ok {
			event = event.Str("eta", formatDuration(d))
		}
	}
	event.Msgf("[%d] O:%d X:%d T:%d", done, stats.AWins, stats.BWins, stats.Ties)
}

// eta estimates the time left for remaining matches at rate matches per
// second. It reports false when rate is unusable or the result does not fit
// in a Duration.
func eta(remaining int, rate float64) (time.Duration, bool) {
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return 0, false
	}
	seconds := float64(remaining) / rate
	if seconds*float64(time.Second) >= math.MaxInt64 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// formatDuration returns a human-readable string for a duration
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
