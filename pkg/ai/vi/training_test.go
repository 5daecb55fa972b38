package vi

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/kip93/3T-VI/pkg/game"
	"github.com/kip93/3T-VI/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainSelfPlay(t *testing.T) {
	ctx := context.Background()
	s := store.NewFileStore(t.TempDir())
	config := TrainingConfig{
		Episodes:       20,
		ReportInterval: 7,
		Options: []Option{
			WithStore(s),
			WithRand(rand.New(rand.NewPCG(1, 2))),
		},
	}

	stats, err := Train(ctx, config)
	require.NoError(t, err)
	require.Equal(t, 20, stats.Total())
	require.GreaterOrEqual(t, stats.TotalMoves, 20*5)
	require.LessOrEqual(t, stats.TotalMoves, 20*9)

	for _, name := range []string{NameO, NameX} {
		rec, err := s.Load(ctx, name)
		require.NoError(t, err, name)
		assert.InDelta(t, 1-20*epsilonDecay, rec.Epsilon, 1e-12, name)
	}

	// a second run picks up where the first stopped
	config.Episodes = 5
	stats, err = Train(ctx, config)
	require.NoError(t, err)
	require.Equal(t, 5, stats.Total())
	rec, err := s.Load(ctx, NameO)
	require.NoError(t, err)
	assert.InDelta(t, 1-25*epsilonDecay, rec.Epsilon, 1e-12)
}

func TestAgentPlaysBothSides(t *testing.T) {
	ctx := context.Background()
	s := store.NewFileStore(t.TempDir())
	a, err := New(ctx, "solo", WithStore(s), WithRand(rand.New(rand.NewPCG(3, 3))))
	require.NoError(t, err)

	r := game.NewRunnerWithStart(a, a, game.MarkA)
	for i := 0; i < 3; i++ {
		_, err := r.Run(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, 0, a.Pending())
	assert.InDelta(t, 1-3*epsilonDecay, a.Epsilon(), 1e-12)

	rec, err := s.Load(ctx, a.Key())
	require.NoError(t, err)
	assert.Equal(t, a.Epsilon(), rec.Epsilon)
}

func TestTrainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := Train(ctx, TrainingConfig{
		ReportInterval: 10,
		Options:        []Option{WithStore(store.NewFileStore(t.TempDir()))},
	})
	require.NoError(t, err)
	require.Equal(t, 0, stats.Total())
}

func TestTrainRejectsBadConfig(t *testing.T) {
	opts := []Option{WithStore(store.NewFileStore(t.TempDir()))}
	_, err := Train(context.Background(), TrainingConfig{ReportInterval: 0, Options: opts})
	require.Error(t, err)
	_, err = Train(context.Background(), TrainingConfig{Episodes: -1, ReportInterval: 1, Options: opts})
	require.Error(t, err)
}

func TestETA(t *testing.T) {
	d, ok := eta(100, 10)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, d)

	d, ok = eta(3, 2)
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)

	for _, rate := range []float64{math.Inf(1), 0, -1, math.NaN(), 1e-12} {
		_, ok := eta(1_000_000, rate)
		assert.False(t, ok, "rate %v", rate)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1400 * time.Millisecond, "1s"},
		{59 * time.Second, "59s"},
		{61 * time.Second, "1m01s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
		{26 * time.Hour, "26h00m00s"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, formatDuration(tc.d), tc.d.String())
	}
}
