package random

import (
	"math/rand/v2"

	"github.com/kip93/3T-VI/pkg/game"
)

// RandomAI はランダムに空きマスを選ぶ実装
type RandomAI struct {
	rng *rand.Rand
}

// New は RandomAI を生成する。rng が nil なら自前で作る。
func New(rng *rand.Rand) *RandomAI {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomAI{rng: rng}
}

func (r *RandomAI) Name() string {
	return "random"
}

func (r *RandomAI) Move(board game.Board) game.Action {
	cells := board.EmptyCells()
	return cells[r.rng.IntN(len(cells))]
}
