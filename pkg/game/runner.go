package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MatchRecord は 1 対局の記録
type MatchRecord struct {
	ID      string  `json:"id"`
	Start   Mark    `json:"start"`   // 先手
	Moves   []Move  `json:"moves"`   // 手の履歴
	Outcome Outcome `json:"outcome"` // 結果
	Final   Board   `json:"final"`   // 終局図
}

// Move は履歴の 1 手
type Move struct {
	Mark   Mark   `json:"mark"`
	Action Action `json:"action"`
}

// Score は対局成績
type Score struct {
	AWins int `json:"o_wins"`
	BWins int `json:"x_wins"`
	Ties  int `json:"ties"`
}

func (s Score) Total() int {
	return s.AWins + s.BWins + s.Ties
}

func (s *Score) add(o Outcome) {
	switch o {
	case AWins:
		s.AWins++
	case BWins:
		s.BWins++
	case Tie:
		s.Ties++
	}
}

// Runner は 2 人のプレイヤーの対局を管理する。
// MarkB 側のプレイヤーには反転した盤面を見せるので、
// どちらのプレイヤーも自分が MarkA である前提で学習できる。
type Runner struct {
	players [2]Player // [0]=MarkA, [1]=MarkB
	board   Board
	start   Mark
	score   Score

	// Delay は各手の前の「考え中」の待ち時間。結果には影響しない。
	Delay time.Duration
}

// NewRunner はプレイヤーをセットして返す。最初の先手はランダム。
func NewRunner(a, b Player) *Runner {
	start := MarkA
	if rand.IntN(2) == 1 {
		start = MarkB
	}
	return NewRunnerWithStart(a, b, start)
}

// NewRunnerWithStart は最初の先手を指定して返す
func NewRunnerWithStart(a, b Player, start Mark) *Runner {
	if start != MarkA && start != MarkB {
		panic(fmt.Errorf("%w: start %d", ErrInvalidMark, start))
	}
	return &Runner{
		players: [2]Player{a, b},
		board:   New(),
		start:   start,
	}
}

func (r *Runner) player(m Mark) Player {
	if m == MarkA {
		return r.players[0]
	}
	return r.players[1]
}

// Board は現在の盤面を返す
func (r *Runner) Board() Board {
	return r.board
}

// Score はこれまでの成績を返す
func (r *Runner) Score() Score {
	return r.score
}

// Start は次の対局の先手を返す
func (r *Runner) Start() Mark {
	return r.start
}

// Run は 1 対局を実行し、両者の学習と保存を行ってから記録を返す。
// 待ち時間中に ctx がキャンセルされた場合は学習せずに盤面を戻す。
func (r *Runner) Run(ctx context.Context) (MatchRecord, error) {
	record := MatchRecord{
		ID:    uuid.NewString(),
		Start: r.start,
		Moves: make([]Move, 0, Size*Size),
	}
	logger := log.With().Str("match", record.ID).Logger()

	// 1) 対局ループ
	turn := r.start
	for r.board.Result() == InProgress {
		if err := r.think(ctx); err != nil {
			r.abort()
			return record, err
		}

		view := r.board
		if turn == MarkB {
			view = view.Invert()
		}
		action := r.player(turn).Move(view)
		if !action.Valid() || view.Get(action.Row, action.Col) != Empty {
			r.abort()
			return record, fmt.Errorf("%s played illegal move %v on\n%v", r.player(turn).Name(), action, view)
		}
		r.board.Play(action, turn)
		record.Moves = append(record.Moves, Move{Mark: turn, Action: action})
		logger.Trace().Str("player", r.player(turn).Name()).Stringer("action", action).Msg("move")

		turn = turn.Opposite()
	}

	// 2) 結果の記録
	record.Outcome = r.board.Result()
	record.Final = r.board
	r.score.add(record.Outcome)
	logger.Debug().Stringer("outcome", record.Outcome).Int("moves", len(record.Moves)).Msg("match finished")

	// 3) 次の対局の準備 (先手交代)
	r.board.Clear()
	r.start = r.start.Opposite()

	// 4) 学習と保存。終局した対局はキャンセルされていても保存する。
	learners, marks := r.learners()
	for i, learner := range learners {
		if err := learner.Train(record.Outcome.For(marks[i])); err != nil {
			// まだ学習していない側の経験も次の対局に持ち越さない
			for _, rest := range learners[i+1:] {
				rest.Forget()
			}
			return record, fmt.Errorf("train %s: %w", learner.Name(), err)
		}
	}
	saveCtx := context.WithoutCancel(ctx)
	for _, learner := range learners {
		if err := learner.Save(saveCtx); err != nil {
			return record, fmt.Errorf("save %s: %w", learner.Name(), err)
		}
	}

	return record, nil
}

// learners は学習するプレイヤーを重複なく、担当する記号と一緒に返す。
// 両側が同じ学習器なら経験は 1 つの軌跡にまとまっているので、MarkA 側の結果で 1 回だけ学習する。
func (r *Runner) learners() ([]Learner, []Mark) {
	var learners []Learner
	var marks []Mark
	for i, m := range [2]Mark{MarkA, MarkB} {
		learner, ok := r.players[i].(Learner)
		if !ok {
			continue
		}
		if len(learners) > 0 && samePlayer(learners[0], learner) {
			continue
		}
		learners = append(learners, learner)
		marks = append(marks, m)
	}
	return learners, marks
}

// samePlayer は比較できない動的型でも panic しない同一性判定
func samePlayer(a, b Player) bool {
	t := reflect.TypeOf(a)
	return t == reflect.TypeOf(b) && t.Comparable() && a == b
}

// abort は途中の対局を捨てる。学習は行わない。
func (r *Runner) abort() {
	r.board.Clear()
	learners, _ := r.learners()
	for _, learner := range learners {
		learner.Forget()
	}
}

func (r *Runner) think(ctx context.Context) error {
	if r.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
