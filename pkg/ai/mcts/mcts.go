// Package mcts is a Monte Carlo Tree Search baseline opponent. It needs no
// training, so it gives saved agents a fixed yardstick in offline battles.
package mcts

import (
	"math"
	"math/rand/v2"

	"github.com/kip93/3T-VI/pkg/game"
)

// DefaultSimulations is enough to never miss a one-move win or block.
const DefaultSimulations = 1000

// exploration parameter of UCB1
const c = math.Sqrt2

// node represents a node in the Monte Carlo search tree
type node struct {
	board      game.Board
	action     game.Action // move that led here
	toMove     game.Mark
	parent     *node
	children   []*node
	unexplored []game.Action
	visits     int
	// totalReward is seen from the side that played action
	totalReward float64
}

func newNode(board game.Board, toMove game.Mark, parent *node, action game.Action) *node {
	n := &node{board: board, action: action, toMove: toMove, parent: parent}
	if board.Result() == game.InProgress {
		n.unexplored = board.EmptyCells()
	}
	return n
}

// MCTSAI picks moves with UCB1 tree search and random rollouts.
type MCTSAI struct {
	simulations int
	rng         *rand.Rand
}

// New returns an MCTSAI running simulations rollouts per move. rng may be nil.
func New(simulations int, rng *rand.Rand) *MCTSAI {
	if simulations < 1 {
		simulations = DefaultSimulations
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &MCTSAI{simulations: simulations, rng: rng}
}

func (ai *MCTSAI) Name() string {
	return "mcts"
}

// Move searches from board, where it plays MarkA.
func (ai *MCTSAI) Move(board game.Board) game.Action {
	root := newNode(board, game.MarkA, nil, game.Action{})
	if len(root.unexplored) == 0 {
		panic("mcts: no legal move")
	}

	for i := 0; i < ai.simulations; i++ {
		// Selection and expansion
		n := ai.selectNode(root)
		// Simulation
		reward := ai.simulate(n.board, n.toMove)
		// Backpropagation
		backpropagate(n, reward)
	}

	// exploitation only for the final choice
	var best *node
	var bestScore float64
	for _, child := range root.children {
		score := child.totalReward / float64(child.visits)
		if best == nil || score > bestScore {
			best, bestScore = child, score
		}
	}
	return best.action
}

// selectNode expands a random untried move, or descends by UCB1 once every
// move of the node has been tried.
func (ai *MCTSAI) selectNode(n *node) *node {
	if len(n.unexplored) > 0 {
		i := ai.rng.IntN(len(n.unexplored))
		action := n.unexplored[i]
		n.unexplored = append(n.unexplored[:i], n.unexplored[i+1:]...)

		next := n.board
		next.Play(action, n.toMove)
		child := newNode(next, n.toMove.Opposite(), n, action)
		n.children = append(n.children, child)
		return child
	}

	// terminal
	if len(n.children) == 0 {
		return n
	}

	var best *node
	var bestUCB float64
	for _, child := range n.children {
		exploitation := child.totalReward / float64(child.visits)
		exploration := c * math.Sqrt(math.Log(float64(n.visits))/float64(child.visits))
		if ucb := exploitation + exploration; best == nil || ucb > bestUCB {
			best, bestUCB = child, ucb
		}
	}
	return ai.selectNode(best)
}

// simulate plays random moves to the end and scores the result for the side
// that moved into board.
func (ai *MCTSAI) simulate(board game.Board, toMove game.Mark) float64 {
	mover := toMove.Opposite()
	for board.Result() == game.InProgress {
		cells := board.EmptyCells()
		board.Play(cells[ai.rng.IntN(len(cells))], toMove)
		toMove = toMove.Opposite()
	}
	return float64(board.Result().For(mover))
}

// backpropagate updates every node on the path, flipping the sign at each ply.
func backpropagate(n *node, reward float64) {
	for ; n != nil; n = n.parent {
		n.visits++
		n.totalReward += reward
		reward = -reward
	}
}
