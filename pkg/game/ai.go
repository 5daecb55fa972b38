package game

import "context"

// Player は手を選ぶエージェントのインターフェース。
// 盤面は常に自分が MarkA である視点で渡される。
type Player interface {
	Name() string
	// Move は空きマスを 1 つ返す
	Move(board Board) Action
}

// Learner は対局ごとに学習・保存するプレイヤー
type Learner interface {
	Player
	// Train は直前の対局の結果で学習する
	Train(result Result) error
	// Forget は終局しなかった対局の経験を捨てる
	Forget()
	// Save は現在の進捗を保存する
	Save(ctx context.Context) error
}
