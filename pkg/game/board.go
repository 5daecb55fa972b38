package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOutOfRange   = errors.New("index out of range")
	ErrInvalidMark  = errors.New("invalid mark")
	ErrInvalidBoard = errors.New("invalid board")
)

// Mark は 1 マスの状態
type Mark int8

const (
	MarkB Mark = -1 // X
	Empty Mark = 0
	MarkA Mark = 1  // O
)

// Opposite は相手側の記号を返す (Empty はそのまま)
func (m Mark) Opposite() Mark {
	return -m
}

func (m Mark) String() string {
	switch m {
	case MarkA:
		return "O"
	case MarkB:
		return "X"
	default:
		return "-"
	}
}

const (
	Size = 3

	// 各フィールド 2bit: MarkB=00, Empty=01, MarkA=10
	fieldBits  = 2
	fieldMask  = 0x3
	lowBits    = 0x15555 // 全フィールドの下位ビット = 「空きマス」ビット
	boardMask  = 0x3FFFF
	emptyBoard = lowBits
)

// line は勝利ラインのマスクと、MarkA が揃ったときのパターン。
// MarkB が揃ったときは常に 0 になる。
type line struct {
	mask uint32
	patA uint32
}

var lines = [8]line{
	{0x0003F, 0x0002A}, // 上段
	{0x00FC0, 0x00A80}, // 中段
	{0x3F000, 0x2A000}, // 下段
	{0x030C3, 0x02082}, // 左列
	{0x0C30C, 0x08208}, // 中列
	{0x30C30, 0x20820}, // 右列
	{0x30303, 0x20202}, // 左上→右下
	{0x03330, 0x02220}, // 右上→左下
}

// Action は行と列の組
type Action struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (a Action) Valid() bool {
	return inRange(a.Row) && inRange(a.Col)
}

func (a Action) String() string {
	return fmt.Sprintf("(%d,%d)", a.Row, a.Col)
}

// Board は 3x3 の盤面を 1 つの整数に詰めたもの。
// マス (r,c) はビット 2*(3r+c) から始まる 2bit フィールド。
// 生の値からは必ず FromID で作ること。Board(x) で直接変換すると
// 11 のフィールドや上位ビットが検査されず、Get が不正な Mark を返しうる。
type Board uint32

// New は空の盤面を返す
func New() Board {
	return emptyBoard
}

// FromID は生の値から盤面を復元する
func FromID(id uint32) (Board, error) {
	if id&^boardMask != 0 {
		return 0, fmt.Errorf("%w: 0x%X has bits above the 9th cell", ErrInvalidBoard, id)
	}
	// 11 のフィールドは下位ビットと上位ビットが両方立っている
	if id&(id>>1)&lowBits != 0 {
		return 0, fmt.Errorf("%w: 0x%X has an illegal cell", ErrInvalidBoard, id)
	}
	return Board(id), nil
}

func (b Board) ID() uint32 {
	return uint32(b)
}

func inRange(i int) bool {
	return i >= 0 && i < Size
}

func shift(row, col int) uint {
	if !inRange(row) || !inRange(col) {
		panic(fmt.Errorf("%w: (%d,%d)", ErrOutOfRange, row, col))
	}
	return uint((Size*row + col) * fieldBits)
}

// Get は (row, col) のマスを返す
func (b Board) Get(row, col int) Mark {
	return Mark(int8(uint32(b)>>shift(row, col)&fieldMask) - 1)
}

// Set は (row, col) に m を置き、連鎖用に自身を返す
func (b *Board) Set(row, col int, m Mark) *Board {
	s := shift(row, col)
	if m != MarkA && m != MarkB {
		panic(fmt.Errorf("%w: %d", ErrInvalidMark, m))
	}
	*b = Board(uint32(*b)&^(fieldMask<<s) | uint32(m+1)<<s)
	return b
}

// Play は Set の Action 版
func (b *Board) Play(a Action, m Mark) *Board {
	return b.Set(a.Row, a.Col, m)
}

// Clear は盤面を空に戻す
func (b *Board) Clear() *Board {
	*b = emptyBoard
	return b
}

// Invert は MarkA と MarkB を入れ替えた盤面を返す。空きマスはそのまま。
func (b Board) Invert() Board {
	return b ^ Board((^uint32(b)&lowBits)<<1)
}

// Result は勝敗判定を行う
func (b Board) Result() Outcome {
	id := uint32(b)
	for _, l := range lines {
		switch id & l.mask {
		case l.patA:
			return AWins
		case 0:
			return BWins
		}
	}
	if id&lowBits == 0 {
		return Tie
	}
	return InProgress
}

// EmptyCells は空きマスを行優先で返す
func (b Board) EmptyCells() []Action {
	cells := make([]Action, 0, Size*Size)
	for i := 0; i < Size*Size; i++ {
		if uint32(b)>>(i*fieldBits)&fieldMask == uint32(Empty+1) {
			cells = append(cells, Action{Row: i / Size, Col: i % Size})
		}
	}
	return cells
}

// Features は +1 (O) / 0 / -1 (X) の 9 要素ベクトルを返す
func (b Board) Features() []float64 {
	features := make([]float64, Size*Size)
	for i := range features {
		features[i] = float64(int8(uint32(b)>>(i*fieldBits)&fieldMask) - 1)
	}
	return features
}

func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for c := 0; c < Size; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(b.Get(r, c).String())
		}
	}
	return sb.String()
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint32(b))
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var id uint32
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	parsed, err := FromID(id)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
