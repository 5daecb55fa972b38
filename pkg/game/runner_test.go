package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firstEmpty は行優先で最初の空きマスに打ち、見た盤面と結果を記録する
type firstEmpty struct {
	name     string
	seen     []Board
	results  []Result
	saves    int
	forgets  int
	illegal  bool
	trainErr error
}

func (p *firstEmpty) Name() string { return p.name }

func (p *firstEmpty) Move(board Board) Action {
	p.seen = append(p.seen, board)
	if p.illegal {
		return Action{Row: 3, Col: 0}
	}
	return board.EmptyCells()[0]
}

func (p *firstEmpty) Train(result Result) error {
	if p.trainErr != nil {
		return p.trainErr
	}
	p.results = append(p.results, result)
	return nil
}

func (p *firstEmpty) Forget() { p.forgets++ }

func (p *firstEmpty) Save(context.Context) error {
	p.saves++
	return nil
}

func TestRunPlaysFullMatch(t *testing.T) {
	a, b := &firstEmpty{name: "a"}, &firstEmpty{name: "b"}
	r := NewRunnerWithStart(a, b, MarkA)

	record, err := r.Run(context.Background())
	require.NoError(t, err)

	// O: (0,0) (0,2) (1,1) (2,0) で右上→左下が揃う
	assert.Equal(t, AWins, record.Outcome)
	assert.Equal(t, MarkA, record.Start)
	assert.NotEmpty(t, record.ID)
	require.Len(t, record.Moves, 7)
	assert.Equal(t, Move{Mark: MarkA, Action: Action{0, 0}}, record.Moves[0])
	assert.Equal(t, Move{Mark: MarkB, Action: Action{0, 1}}, record.Moves[1])
	assert.Equal(t, AWins, record.Final.Result())

	assert.Equal(t, []Result{Win}, a.results)
	assert.Equal(t, []Result{Loss}, b.results)
	assert.Equal(t, 1, a.saves)
	assert.Equal(t, 1, b.saves)

	assert.Equal(t, Score{AWins: 1}, r.Score())
	assert.Equal(t, New(), r.Board())
	assert.Equal(t, MarkB, r.Start())
}

func TestRunShowsInvertedBoardToMarkB(t *testing.T) {
	a, b := &firstEmpty{name: "a"}, &firstEmpty{name: "b"}
	r := NewRunnerWithStart(a, b, MarkA)
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	// b の最初の手番では O の (0,0) が自分の相手 (MarkB) に見える
	require.NotEmpty(t, b.seen)
	assert.Equal(t, MarkB, b.seen[0].Get(0, 0))
	assert.Len(t, b.seen[0].EmptyCells(), 8)

	// a が見る盤面はそのまま
	assert.Equal(t, New(), a.seen[0])
	assert.Equal(t, MarkA, a.seen[1].Get(0, 0))
	assert.Equal(t, MarkB, a.seen[1].Get(0, 1))
}

func TestRunAlternatesStart(t *testing.T) {
	a, b := &firstEmpty{name: "a"}, &firstEmpty{name: "b"}
	r := NewRunnerWithStart(a, b, MarkA)

	for i, want := range []Mark{MarkA, MarkB, MarkA, MarkB} {
		record, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, record.Start, "match %d", i)
		assert.Equal(t, want, record.Moves[0].Mark, "match %d", i)
	}

	// 先手が必ず勝つ並びなので 2 勝ずつ
	assert.Equal(t, Score{AWins: 2, BWins: 2}, r.Score())
	assert.Equal(t, 4, r.Score().Total())
	assert.Equal(t, []Result{Win, Loss, Win, Loss}, a.results)
	assert.Equal(t, []Result{Loss, Win, Loss, Win}, b.results)
}

func TestRunRejectsIllegalMove(t *testing.T) {
	a, b := &firstEmpty{name: "a"}, &firstEmpty{name: "b", illegal: true}
	r := NewRunnerWithStart(a, b, MarkA)

	_, err := r.Run(context.Background())
	require.ErrorContains(t, err, "illegal move")
	assert.Equal(t, New(), r.Board())
	assert.Equal(t, 1, a.forgets)
	assert.Equal(t, 1, b.forgets)
	assert.Empty(t, a.results)
	assert.Zero(t, a.saves)
	assert.Zero(t, r.Score().Total())
}

func TestRunTrainErrorMakesOthersForget(t *testing.T) {
	boom := errors.New("boom")
	a, b := &firstEmpty{name: "a", trainErr: boom}, &firstEmpty{name: "b"}
	r := NewRunnerWithStart(a, b, MarkA)

	record, err := r.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, AWins, record.Outcome)
	assert.Empty(t, b.results)
	assert.Equal(t, 1, b.forgets)
	assert.Zero(t, a.saves)
	assert.Zero(t, b.saves)

	// 次の対局は通常どおり進む
	a.trainErr = nil
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Result{Win}, b.results)
}

func TestRunSameLearnerOnBothSides(t *testing.T) {
	p := &firstEmpty{name: "self"}
	r := NewRunnerWithStart(p, p, MarkA)

	record, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AWins, record.Outcome)
	assert.Equal(t, []Result{Win}, p.results)
	assert.Equal(t, 1, p.saves)
	assert.Len(t, p.seen, 7)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Result{Win, Loss}, p.results)
	assert.Equal(t, 2, p.saves)

	// 中断時も Forget は 1 回
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.forgets)
}

func TestRunAbortsOnCancel(t *testing.T) {
	a, b := &firstEmpty{name: "a"}, &firstEmpty{name: "b"}
	r := NewRunnerWithStart(a, b, MarkA)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, a.seen)
	assert.Equal(t, 1, a.forgets)
	assert.Empty(t, a.results)
	assert.Equal(t, MarkA, r.Start())
}

func TestRunDelayRespectsDeadline(t *testing.T) {
	a, b := &firstEmpty{name: "a"}, &firstEmpty{name: "b"}
	r := NewRunnerWithStart(a, b, MarkA)
	r.Delay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, New(), r.Board())
}

func TestRunSkipsNonLearners(t *testing.T) {
	// 埋め込みで Player のメソッドだけを見せる
	p := struct{ Player }{&firstEmpty{name: "plain"}}
	b := &firstEmpty{name: "b"}
	r := NewRunnerWithStart(p, b, MarkB)

	record, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BWins, record.Outcome)
	assert.Equal(t, []Result{Win}, b.results)
	assert.Equal(t, 1, b.saves)
}

func TestNewRunnerStart(t *testing.T) {
	r := NewRunner(&firstEmpty{}, &firstEmpty{})
	assert.Contains(t, []Mark{MarkA, MarkB}, r.Start())
	assert.Panics(t, func() { NewRunnerWithStart(&firstEmpty{}, &firstEmpty{}, Empty) })
}
