package game

import "fmt"

// Outcome は盤面全体から見た勝敗
type Outcome int8

const (
	InProgress Outcome = iota
	AWins
	BWins
	Tie
)

func (o Outcome) String() string {
	switch o {
	case InProgress:
		return "in progress"
	case AWins:
		return "O wins"
	case BWins:
		return "X wins"
	case Tie:
		return "tie"
	default:
		return fmt.Sprintf("Outcome(%d)", int8(o))
	}
}

// Finished は終局しているかを返す
func (o Outcome) Finished() bool {
	return o == AWins || o == BWins || o == Tie
}

// For は終局結果を m 側から見た Result に変換する
func (o Outcome) For(m Mark) Result {
	switch {
	case o == Tie:
		return Tied
	case o == AWins && m == MarkA, o == BWins && m == MarkB:
		return Win
	case o == AWins && m == MarkB, o == BWins && m == MarkA:
		return Loss
	}
	panic(fmt.Sprintf("game: no result for %v from the side of %v", o, m))
}

// Result は片方のプレイヤーから見た勝敗
type Result int8

const (
	Loss Result = -1
	Tied Result = 0
	Win  Result = 1
)

func (r Result) String() string {
	switch r {
	case Win:
		return "won"
	case Loss:
		return "lost"
	default:
		return "tied"
	}
}
