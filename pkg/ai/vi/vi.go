// Package vi implements 3T-VI, a Tic-Tac-Toe agent that learns by self-play.
//
// The agent always plays as game.MarkA; the driver inverts the board for
// whichever side it plays. Moves are chosen epsilon-greedily from two
// independent 3-way scores (row and column), every (board, action) pair of a
// match is remembered, and Train turns that trajectory into one batch of
// one-step bootstrapped targets for the Approximator.
package vi

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/kip93/3T-VI/pkg/game"
	"github.com/kip93/3T-VI/pkg/store"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNoEmptyCell means Move was asked to play on a full board.
	ErrNoEmptyCell = errors.New("vi: no empty cell to play")
	// ErrNoExperience means Train was called without any recorded move.
	ErrNoExperience = errors.New("vi: nothing to train on")
)

const (
	initialEpsilon = 1.0
	epsilonDecay   = 1e-4
)

// Approximator maps a board to a row distribution and a column distribution,
// and can be nudged toward target distributions.
type Approximator interface {
	// Predict is deterministic for fixed parameters; each head sums to 1.
	Predict(board game.Board) (rows, cols [3]float64)
	// TrainStep performs one parameter update toward the batch targets.
	TrainStep(batch []Example) error
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// Example is one training target for both heads.
type Example struct {
	Board game.Board
	Rows  [3]float64
	Cols  [3]float64
}

// Exploration selects how epsilon turns into the chance of a random move.
type Exploration int

const (
	// ExploreEpsilon explores with probability epsilon, which falls as the agent trains.
	ExploreEpsilon Exploration = iota
	// ExploreInverse explores with probability 1/epsilon, like the first 3T-VI.
	// Since epsilon never exceeds 1, this explores on every move until epsilon hits 0.
	ExploreInverse
)

func (e Exploration) String() string {
	switch e {
	case ExploreEpsilon:
		return "epsilon"
	case ExploreInverse:
		return "inverse"
	default:
		return fmt.Sprintf("Exploration(%d)", int(e))
	}
}

// ParseExploration is the inverse of Exploration.String.
func ParseExploration(s string) (Exploration, error) {
	switch s {
	case "epsilon":
		return ExploreEpsilon, nil
	case "inverse":
		return ExploreInverse, nil
	default:
		return 0, fmt.Errorf("vi: unknown exploration %q", s)
	}
}

type step struct {
	board  game.Board
	action game.Action
}

// Agent is a 3T-VI player. It is not safe for concurrent use.
type Agent struct {
	name        string
	model       Approximator
	newModel    func() (Approximator, error)
	store       store.Store
	rng         *rand.Rand
	exploration Exploration

	epsilon    float64
	trajectory []step
}

// Option configures an Agent.
type Option func(*Agent)

// WithApproximator sets the factory for fresh approximators. The default
// builds a Network from DefaultNetworkConfig.
func WithApproximator(factory func() (Approximator, error)) Option {
	return func(a *Agent) {
		a.newModel = factory
	}
}

// WithStore sets where progress is loaded from and saved to. The default is
// a FileStore in store.DefaultDir.
func WithStore(s store.Store) Option {
	return func(a *Agent) {
		a.store = s
	}
}

// WithRand sets the random source for exploration.
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) {
		a.rng = rng
	}
}

// WithExploration sets the exploration mode. The default is ExploreEpsilon.
func WithExploration(e Exploration) Option {
	return func(a *Agent) {
		a.exploration = e
	}
}

// New creates an agent and loads any progress saved under its name.
func New(ctx context.Context, name string, opts ...Option) (*Agent, error) {
	a := &Agent{
		name: name,
		newModel: func() (Approximator, error) {
			return NewNetwork(DefaultNetworkConfig())
		},
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		exploration: ExploreEpsilon,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.store == nil {
		a.store = store.NewFileStore("")
	}
	if err := a.reset(); err != nil {
		return nil, err
	}
	a.Load(ctx)
	return a, nil
}

func (a *Agent) Name() string {
	return a.name
}

// Key is the persistence key, the upper-cased name.
func (a *Agent) Key() string {
	return strings.ToUpper(a.name)
}

func (a *Agent) Epsilon() float64 {
	return a.epsilon
}

// SetEpsilon overrides the exploration rate, clamped to [0, 1].
func (a *Agent) SetEpsilon(e float64) {
	a.epsilon = min(max(e, 0), 1)
}

// Pending is the number of moves recorded since the last Train.
func (a *Agent) Pending() int {
	return len(a.trajectory)
}

// Predict exposes the approximator's scores for board.
func (a *Agent) Predict(board game.Board) (rows, cols [3]float64) {
	return a.model.Predict(board)
}

// Move picks a move on board, from the agent's own (MarkA) perspective, and
// records it. The returned cell is always empty.
func (a *Agent) Move(board game.Board) game.Action {
	empty := board.EmptyCells()
	if len(empty) == 0 {
		panic(ErrNoEmptyCell)
	}

	rows, cols := a.model.Predict(board)
	action := game.Action{Row: floats.MaxIdx(rows[:]), Col: floats.MaxIdx(cols[:])}
	if a.explore() || board.Get(action.Row, action.Col) != game.Empty {
		action = empty[a.rng.IntN(len(empty))]
	}

	a.trajectory = append(a.trajectory, step{board: board, action: action})
	return action
}

func (a *Agent) explore() bool {
	if a.epsilon <= 0 {
		return false
	}
	switch a.exploration {
	case ExploreInverse:
		return a.rng.Float64() < 1/a.epsilon
	default:
		return a.rng.Float64() < a.epsilon
	}
}

// Train learns from the match that just ended, then decays epsilon. The
// trajectory is consumed even if the update fails.
func (a *Agent) Train(result game.Result) error {
	if len(a.trajectory) == 0 {
		return ErrNoExperience
	}
	defer a.Forget()

	batch := a.prepareBatch(result)
	if err := a.model.TrainStep(batch); err != nil {
		return fmt.Errorf("vi: train %s: %w", a.name, err)
	}

	a.epsilon = max(a.epsilon-epsilonDecay, 0)
	log.Debug().
		Str("agent", a.name).
		Stringer("result", result).
		Int("examples", len(batch)).
		Float64("epsilon", a.epsilon).
		Msg("trained")
	return nil
}

// Forget drops the moves recorded since the last Train.
func (a *Agent) Forget() {
	a.trajectory = a.trajectory[:0]
}

// Save writes the approximator's parameters and epsilon under Key.
func (a *Agent) Save(ctx context.Context) error {
	params, err := a.model.MarshalBinary()
	if err != nil {
		return fmt.Errorf("vi: encode %s: %w", a.name, err)
	}
	if err := a.store.Save(ctx, a.Key(), store.Record{Params: params, Epsilon: a.epsilon}); err != nil {
		return fmt.Errorf("vi: save %s: %w", a.name, err)
	}
	return nil
}

// Load restores progress saved under Key. Missing or unreadable progress is
// not an error: the agent starts over with fresh parameters and epsilon 1.
func (a *Agent) Load(ctx context.Context) {
	rec, err := a.store.Load(ctx, a.Key())
	if err == nil {
		err = a.restore(rec)
	}
	switch {
	case err == nil:
		log.Info().Str("agent", a.name).Float64("epsilon", a.epsilon).Msg("loaded progress")
		return
	case errors.Is(err, store.ErrNotFound):
		log.Info().Str("agent", a.name).Msg("no saved progress, starting fresh")
	default:
		log.Warn().Err(err).Str("agent", a.name).Msg("could not load progress, starting fresh")
	}
	if err := a.reset(); err != nil {
		log.Error().Err(err).Str("agent", a.name).Msg("could not rebuild approximator")
	}
}

func (a *Agent) restore(rec store.Record) error {
	if rec.Epsilon < 0 || rec.Epsilon > 1 {
		return fmt.Errorf("vi: saved epsilon %v outside [0, 1]", rec.Epsilon)
	}
	model, err := a.newModel()
	if err != nil {
		return err
	}
	if err := model.UnmarshalBinary(rec.Params); err != nil {
		return err
	}
	a.model = model
	a.epsilon = rec.Epsilon
	return nil
}

func (a *Agent) reset() error {
	model, err := a.newModel()
	if err != nil {
		return fmt.Errorf("vi: create approximator for %s: %w", a.name, err)
	}
	a.model = model
	a.epsilon = initialEpsilon
	a.trajectory = a.trajectory[:0]
	return nil
}
