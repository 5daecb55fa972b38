package trivial

import (
	"github.com/kip93/3T-VI/pkg/game"
)

// TrivialAI は勝てる手があれば打ち、なければ負けを防ぎ、
// それもなければ行優先で最初の空きマスに打つ。
type TrivialAI struct{}

func (ai *TrivialAI) Name() string {
	return "trivial"
}

func New() *TrivialAI {
	return &TrivialAI{}
}

// Move は盤面を自分 (MarkA) の視点で見て手を返す
func (ai *TrivialAI) Move(board game.Board) game.Action {
	cells := board.EmptyCells()

	// 勝ち
	for _, a := range cells {
		next := board
		if next.Play(a, game.MarkA).Result() == game.AWins {
			return a
		}
	}

	// 相手の勝ちを防ぐ
	for _, a := range cells {
		next := board
		if next.Play(a, game.MarkB).Result() == game.BWins {
			return a
		}
	}

	return cells[0]
}
