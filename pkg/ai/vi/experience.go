package vi

import "github.com/kip93/3T-VI/pkg/game"

const (
	discount = 0.9

	winValue  = 1.0
	tieValue  = 0.7
	lossValue = -1.0

	// trajectories up to this many moves get the full reward
	undampedMoves = 3
)

// reward is the terminal value of the last move, damped for long matches.
func reward(result game.Result, moves int) float64 {
	multiplier := min(1, undampedMoves/float64(moves))

	switch result {
	case game.Win:
		return winValue * multiplier
	case game.Loss:
		return lossValue * multiplier
	default:
		return tieValue * multiplier
	}
}

// prepareBatch builds one example per recorded move. Each target starts as
// the current prediction; only the taken row and column are replaced, with
// the discounted score of the next move taken, or with the reward for the
// final move.
func (a *Agent) prepareBatch(result game.Result) []Example {
	batch := make([]Example, len(a.trajectory))

	next := a.trajectory[len(a.trajectory)-1]
	nextRows, nextCols := a.model.Predict(next.board)

	last := len(a.trajectory) - 1
	batch[last] = Example{Board: next.board, Rows: nextRows, Cols: nextCols}
	r := reward(result, len(a.trajectory))
	batch[last].Rows[next.action.Row] = r
	batch[last].Cols[next.action.Col] = r

	// walk backwards so every prediction is computed once
	for i := last - 1; i >= 0; i-- {
		prev := a.trajectory[i]
		rows, cols := a.model.Predict(prev.board)

		ex := Example{Board: prev.board, Rows: rows, Cols: cols}
		ex.Rows[prev.action.Row] = discount * nextRows[next.action.Row]
		ex.Cols[prev.action.Col] = discount * nextCols[next.action.Col]
		batch[i] = ex

		next, nextRows, nextCols = prev, rows, cols
	}

	return batch
}
