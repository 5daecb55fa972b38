package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kip93/3T-VI/pkg/ai/vi"
	"github.com/kip93/3T-VI/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	defaults := vi.DefaultTrainingConfig()
	network := vi.DefaultNetworkConfig()

	// Parse command line flags
	episodes := flag.Int("episodes", envInt("VI_EPISODES", defaults.Episodes), "Number of matches, 0 trains until interrupted")
	reportInterval := flag.Int("report", envInt("VI_REPORT", defaults.ReportInterval), "Report progress every N matches")
	delay := flag.Duration("delay", envDuration("VI_DELAY", 0), "Pause before every move")
	backend := flag.String("store", env("VI_STORE", store.KindFile), "Progress backend: file, sqlite or redis")
	progressDir := flag.String("progress", env("VI_PROGRESS_DIR", store.DefaultDir), "Progress directory for the file backend")
	sqlitePath := flag.String("sqlite", env("VI_SQLITE", store.DefaultSQLitePath), "Database path for the sqlite backend")
	redisAddr := flag.String("redis", env("VI_REDIS", store.DefaultRedisAddr), "Server address for the redis backend")
	exploration := flag.String("exploration", env("VI_EXPLORATION", vi.ExploreEpsilon.String()), "Exploration mode: epsilon or inverse")
	learningRate := flag.Float64("lr", envFloat("VI_LR", network.LearningRate), "Learning rate for neural network training")
	solver := flag.String("solver", env("VI_SOLVER", network.Solver), "Solver: adam or sgd")
	seed := flag.Uint64("seed", 0, "Seed for exploration, 0 picks one at random")
	logLevel := flag.String("log-level", env("VI_LOG_LEVEL", zerolog.LevelInfoValue), "Log level")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	explore, err := vi.ParseExploration(*exploration)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid exploration mode")
	}
	network.LearningRate = *learningRate
	network.Solver = *solver
	if _, err := vi.NewNetwork(network); err != nil {
		log.Fatal().Err(err).Msg("invalid network config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := map[string]string{
		store.KindFile:   *progressDir,
		store.KindSQLite: *sqlitePath,
		store.KindRedis:  *redisAddr,
	}[*backend]
	progress, err := store.Open(ctx, *backend, target)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open progress store")
	}
	defer progress.Close()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = rand.Uint64()
	}

	config := vi.TrainingConfig{
		Episodes:       *episodes,
		ReportInterval: *reportInterval,
		Delay:          *delay,
		Options: []vi.Option{
			vi.WithStore(progress),
			vi.WithExploration(explore),
			vi.WithRand(rand.New(rand.NewPCG(rngSeed, rngSeed^0x3741))),
			vi.WithApproximator(func() (vi.Approximator, error) {
				return vi.NewNetwork(network)
			}),
		},
	}

	log.Info().Str("store", *backend).Str("target", target).Uint64("seed", rngSeed).Msg("starting training")
	stats, err := vi.Train(ctx, config)
	if err != nil {
		progress.Close()
		log.Fatal().Err(err).Msg("training failed")
	}

	fmt.Printf("O: %d X: %d T: %d (%d matches)\n", stats.AWins, stats.BWins, stats.Ties, stats.Total())
}
