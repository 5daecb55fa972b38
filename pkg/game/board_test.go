package game

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fill は "OX-" 形式の 9 文字から盤面を作る
func fill(t *testing.T, cells string) Board {
	t.Helper()
	require.Len(t, cells, Size*Size)
	b := New()
	for i, c := range cells {
		switch c {
		case 'O':
			b.Set(i/Size, i%Size, MarkA)
		case 'X':
			b.Set(i/Size, i%Size, MarkB)
		}
	}
	return b
}

// panicErr は f が投げた error を返す
func panicErr(t *testing.T, f func()) (err error) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ok bool
		err, ok = r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
	}()
	f()
	return nil
}

func TestNewIsEmpty(t *testing.T) {
	b := New()
	assert.Equal(t, uint32(0x15555), b.ID())
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			assert.Equal(t, Empty, b.Get(r, c))
		}
	}
	assert.Len(t, b.EmptyCells(), 9)
	assert.Equal(t, InProgress, b.Result())
}

func TestSetGet(t *testing.T) {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			for _, m := range []Mark{MarkA, MarkB} {
				b := New()
				b.Set(r, c, m)
				require.Equal(t, m, b.Get(r, c))

				// 他のマスは変わらない
				for rr := 0; rr < Size; rr++ {
					for cc := 0; cc < Size; cc++ {
						if rr != r || cc != c {
							require.Equal(t, Empty, b.Get(rr, cc))
						}
					}
				}
			}
		}
	}
}

func TestSetOverwrites(t *testing.T) {
	b := New()
	b.Set(1, 2, MarkA).Set(1, 2, MarkB)
	assert.Equal(t, MarkB, b.Get(1, 2))
	b.Set(1, 2, MarkA)
	assert.Equal(t, MarkA, b.Get(1, 2))
}

func TestClear(t *testing.T) {
	b := fill(t, "OXOXOXXOX")
	b.Clear()
	assert.Equal(t, New(), b)
}

// allBoards は 3^9 通りの盤面をすべて返す
func allBoards() []Board {
	boards := make([]Board, 0, 19683)
	for n := 0; n < 19683; n++ {
		b := New()
		for i, v := 0, n; i < Size*Size; i, v = i+1, v/3 {
			switch v % 3 {
			case 1:
				b.Set(i/Size, i%Size, MarkA)
			case 2:
				b.Set(i/Size, i%Size, MarkB)
			}
		}
		boards = append(boards, b)
	}
	return boards
}

func TestInvert(t *testing.T) {
	b := fill(t, "OX-XO--OX")
	assert.Equal(t, fill(t, "XO-OX--XO"), b.Invert())
	assert.Equal(t, New(), New().Invert())

	seen := make(map[Board]bool, 19683)
	for _, b := range allBoards() {
		require.False(t, seen[b], "duplicate board 0x%X", b.ID())
		seen[b] = true

		inv := b.Invert()
		require.Equal(t, b, inv.Invert(), "board 0x%X", b.ID())
		_, err := FromID(inv.ID())
		require.NoError(t, err)
		for r := 0; r < Size; r++ {
			for c := 0; c < Size; c++ {
				require.Equal(t, b.Get(r, c).Opposite(), inv.Get(r, c))
			}
		}
	}
}

func TestResult(t *testing.T) {
	tests := []struct {
		name  string
		cells string
		want  Outcome
	}{
		{"empty", "---------", InProgress},
		{"X top row", "XXXOO----", BWins},
		{"O main diagonal", "OX-XO---O", AWins},
		{"O anti diagonal", "XXO-O-O--", AWins},
		{"X middle column", "OXO-X--XO", BWins},
		{"full board tie", "OXOOXXXOO", Tie},
		{"full board with a winner", "OOOXXOXXO", AWins},
		{"in progress", "OX-------", InProgress},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := fill(t, tc.cells)
			assert.Equal(t, tc.want, b.Result())
			assert.Equal(t, tc.want == InProgress, !b.Result().Finished())
		})
	}
}

func TestOutOfRangePanics(t *testing.T) {
	for _, rc := range [][2]int{{-1, 0}, {0, -1}, {3, 0}, {0, 3}} {
		err := panicErr(t, func() { New().Get(rc[0], rc[1]) })
		assert.True(t, errors.Is(err, ErrOutOfRange), "Get%v: %v", rc, err)

		b := New()
		err = panicErr(t, func() { b.Set(rc[0], rc[1], MarkA) })
		assert.True(t, errors.Is(err, ErrOutOfRange), "Set%v: %v", rc, err)
		assert.Equal(t, New(), b)
	}
}

func TestInvalidMarkPanics(t *testing.T) {
	for _, m := range []Mark{Empty, 2, -2} {
		b := New()
		err := panicErr(t, func() { b.Set(0, 0, m) })
		assert.ErrorIs(t, err, ErrInvalidMark)
		assert.Equal(t, New(), b)
	}
}

func TestFromID(t *testing.T) {
	b := fill(t, "OX-XO--OX")
	got, err := FromID(b.ID())
	require.NoError(t, err)
	assert.Equal(t, b, got)

	// Board(0x3FFFF) would hold nine 11 fields
	_, err = FromID(0x3FFFF)
	assert.ErrorIs(t, err, ErrInvalidBoard)
	_, err = FromID(0x40000)
	assert.ErrorIs(t, err, ErrInvalidBoard)
	_, err = FromID(0x15557) // (0,0) = 11
	assert.ErrorIs(t, err, ErrInvalidBoard)
}

func TestEmptyCells(t *testing.T) {
	b := fill(t, "O-X-O-X-O")
	assert.Equal(t, []Action{{0, 1}, {1, 0}, {1, 2}, {2, 1}}, b.EmptyCells())
	assert.Empty(t, fill(t, "OXOOXXXOO").EmptyCells())
}

func TestFeatures(t *testing.T) {
	b := fill(t, "OX-XO--OX")
	assert.Equal(t, []float64{1, -1, 0, -1, 1, 0, 0, 1, -1}, b.Features())
}

func TestString(t *testing.T) {
	b := fill(t, "OX-XO--OX")
	assert.Equal(t, "O X -\nX O -\n- O X", b.String())
}

func TestJSON(t *testing.T) {
	b := fill(t, "OX-XO--OX")
	data, err := json.Marshal(b)
	require.NoError(t, err)

	var got Board
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, b, got)

	require.Error(t, json.Unmarshal([]byte("262144"), &got))
}

func TestOutcomeFor(t *testing.T) {
	assert.Equal(t, Win, AWins.For(MarkA))
	assert.Equal(t, Loss, AWins.For(MarkB))
	assert.Equal(t, Loss, BWins.For(MarkA))
	assert.Equal(t, Win, BWins.For(MarkB))
	assert.Equal(t, Tied, Tie.For(MarkA))
	assert.Equal(t, Tied, Tie.For(MarkB))
	assert.Panics(t, func() { InProgress.For(MarkA) })
}

func TestAction(t *testing.T) {
	assert.True(t, Action{2, 2}.Valid())
	assert.False(t, Action{3, 0}.Valid())
	assert.False(t, Action{0, -1}.Valid())
	assert.Equal(t, "(1,2)", Action{1, 2}.String())
}
