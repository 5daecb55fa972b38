package vi

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kip93/3T-VI/pkg/game"
	"github.com/patrikeh/go-deep"
	"github.com/patrikeh/go-deep/training"
)

const (
	inputSize = game.Size * game.Size
	headSize  = game.Size
)

// Solver names accepted by NetworkConfig.
const (
	SolverAdam = "adam"
	SolverSGD  = "sgd"
)

// NetworkConfig defines the neural network architecture
type NetworkConfig struct {
	HiddenLayers []int
	Solver       string
	LearningRate float64
}

func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		HiddenLayers: []int{9, 9, 9},
		Solver:       SolverAdam,
		LearningRate: 0.001,
	}
}

// Network is the go-deep Approximator: one softmax network per head,
// both reading the 9 board features.
type Network struct {
	config    NetworkConfig
	rows      *deep.Neural
	cols      *deep.Neural
	newSolver func(NetworkConfig) (training.Solver, error)
}

// NewNetwork creates a freshly initialized network. Weights are drawn from
// math/rand, so seed it for reproducible runs.
func NewNetwork(config NetworkConfig) (*Network, error) {
	if len(config.HiddenLayers) == 0 {
		return nil, errors.New("vi: network needs at least one hidden layer")
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("vi: learning rate must be positive, got %v", config.LearningRate)
	}
	if _, err := newSolver(config); err != nil {
		return nil, err
	}
	return &Network{
		config:    config,
		rows:      newHead(config),
		cols:      newHead(config),
		newSolver: newSolver,
	}, nil
}

func newHead(config NetworkConfig) *deep.Neural {
	var layout []int
	layout = append(layout, config.HiddenLayers...)
	layout = append(layout, headSize)

	return deep.NewNeural(&deep.Config{
		Inputs:     inputSize,
		Layout:     layout,
		Activation: deep.ActivationReLU,
		Mode:       deep.ModeMultiClass,
		Loss:       deep.LossCrossEntropy,
		Weight:     deep.NewNormal(0.5, 0.0),
		Bias:       true,
	})
}

func newSolver(config NetworkConfig) (training.Solver, error) {
	switch config.Solver {
	case SolverAdam, "":
		return training.NewAdam(config.LearningRate, 0.9, 0.999, 1e-8), nil
	case SolverSGD:
		return training.NewSGD(config.LearningRate, 0.5, 0.0, false), nil
	default:
		return nil, fmt.Errorf("vi: unknown solver %q", config.Solver)
	}
}

// Predict implements Approximator.
func (n *Network) Predict(board game.Board) (rows, cols [3]float64) {
	features := board.Features()
	copy(rows[:], n.rows.Predict(features))
	copy(cols[:], n.cols.Predict(features))
	return rows, cols
}

// TrainStep implements Approximator. Each head gets exactly one update,
// from the mean gradient over the whole batch.
func (n *Network) TrainStep(batch []Example) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make(training.Examples, len(batch))
	cols := make(training.Examples, len(batch))
	for i, ex := range batch {
		features := ex.Board.Features()
		rows[i] = training.Example{Input: features, Response: append([]float64(nil), ex.Rows[:]...)}
		cols[i] = training.Example{Input: features, Response: append([]float64(nil), ex.Cols[:]...)}
	}

	for _, head := range []struct {
		net      *deep.Neural
		examples training.Examples
	}{{n.rows, rows}, {n.cols, cols}} {
		solver, err := n.newSolver(n.config)
		if err != nil {
			return err
		}
		// the trainer's stats printer buffers a header on every Train call,
		// so each step gets its own trainer
		trainer := training.NewTrainer(&batchSolver{Solver: solver, size: len(batch)}, 0)
		trainer.Train(head.net, head.examples, nil, 1)
	}
	return nil
}

// batchSolver turns the online trainer's per-example updates into a single
// update with the mean gradient of the batch. Weights stay fixed until the
// last example, so every gradient is taken at the same parameters.
type batchSolver struct {
	training.Solver
	size  int
	seen  int
	grads []float64
}

func (s *batchSolver) Init(size int) {
	s.Solver.Init(size)
	s.grads = make([]float64, size)
	s.seen = 0
}

func (s *batchSolver) Update(value, gradient float64, iteration, idx int) float64 {
	if idx == 0 {
		s.seen++
	}
	if idx >= len(s.grads) {
		s.grads = append(s.grads, make([]float64, idx+1-len(s.grads))...)
	}
	s.grads[idx] += gradient
	if s.seen < s.size {
		return 0
	}
	mean := s.grads[idx] / float64(s.size)
	s.grads[idx] = 0
	return s.Solver.Update(value, mean, iteration, idx)
}

type networkWeights struct {
	Rows [][][]float64 `json:"rows"`
	Cols [][][]float64 `json:"cols"`
}

// MarshalBinary implements Approximator.
func (n *Network) MarshalBinary() ([]byte, error) {
	return json.Marshal(networkWeights{Rows: n.rows.Dump().Weights, Cols: n.cols.Dump().Weights})
}

// UnmarshalBinary implements Approximator. Weights that do not match the
// configured architecture are rejected and leave the network untouched.
func (n *Network) UnmarshalBinary(data []byte) error {
	var w networkWeights
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("vi: decode network: %w", err)
	}
	if err := sameShape(w.Rows, n.rows.Dump().Weights); err != nil {
		return fmt.Errorf("vi: rows head: %w", err)
	}
	if err := sameShape(w.Cols, n.cols.Dump().Weights); err != nil {
		return fmt.Errorf("vi: cols head: %w", err)
	}
	n.rows.ApplyWeights(w.Rows)
	n.cols.ApplyWeights(w.Cols)
	return nil
}

// sameShape checks layer, neuron and weight counts so ApplyWeights never
// indexes out of range.
func sameShape(got, want [][][]float64) error {
	if len(got) != len(want) {
		return fmt.Errorf("has %d layers, want %d", len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			return fmt.Errorf("layer %d has %d neurons, want %d", i, len(got[i]), len(want[i]))
		}
		for j := range want[i] {
			if len(got[i][j]) != len(want[i][j]) {
				return fmt.Errorf("layer %d neuron %d has %d weights, want %d", i, j, len(got[i][j]), len(want[i][j]))
			}
		}
	}
	return nil
}
