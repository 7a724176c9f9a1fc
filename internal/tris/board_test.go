package tris

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlace_Valid(t *testing.T) {
	assert := assert.New(t)

	var b Board
	err := b.Place(1, 1, MarkX)

	assert.NoError(err)
	assert.Equal(MarkX, b[1][1])
}

func TestPlace_OutOfRange(t *testing.T) {
	assert := assert.New(t)

	var b Board
	coords := [][2]int{{-1, 0}, {0, -1}, {3, 0}, {0, 3}, {3, 3}}

	for _, c := range coords {
		err := b.Place(c[0], c[1], MarkX)
		assert.ErrorIs(err, ErrOutOfRange, "(%d,%d) should be rejected", c[0], c[1])
	}
}

func TestPlace_Occupied(t *testing.T) {
	assert := assert.New(t)

	var b Board
	assert.NoError(b.Place(0, 0, MarkX))

	err := b.Place(0, 0, MarkO)

	assert.ErrorIs(err, ErrCellOccupied)
	assert.Equal(MarkX, b[0][0], "losing mark must not overwrite the cell")
}

func TestWinner_AllEightLines(t *testing.T) {
	assert := assert.New(t)

	lines := [][3][2]int{
		{{0, 0}, {0, 1}, {0, 2}}, // rows
		{{1, 0}, {1, 1}, {1, 2}},
		{{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 0}, {2, 0}}, // columns
		{{0, 1}, {1, 1}, {2, 1}},
		{{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}}, // diagonals
		{{0, 2}, {1, 1}, {2, 0}},
	}

	for _, line := range lines {
		var b Board
		for _, c := range line {
			b[c[0]][c[1]] = MarkO
		}
		assert.Equal(MarkO, b.Winner(), "line %v should win with the rest empty", line)
	}
}

func TestWinner_EmptyBoard(t *testing.T) {
	var b Board
	assert.Equal(t, MarkEmpty, b.Winner())
}

func TestWinner_FullBoardNoLine(t *testing.T) {
	assert := assert.New(t)

	// X O X
	// X O O
	// O X X
	b := Board{
		{MarkX, MarkO, MarkX},
		{MarkX, MarkO, MarkO},
		{MarkO, MarkX, MarkX},
	}

	assert.Equal(MarkEmpty, b.Winner())
	assert.True(b.Full())
}

func TestFull_PartialBoard(t *testing.T) {
	var b Board
	b[0][0] = MarkX

	assert.False(t, b.Full())
}

func TestCells_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	b := Board{
		{MarkX, MarkO, MarkEmpty},
		{MarkEmpty, MarkX, MarkO},
		{MarkO, MarkEmpty, MarkX},
	}

	cells := b.Cells()

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(string(b[i][j]), cells[i][j])
		}
	}
	assert.Equal("", cells[0][2], "empty cells render as empty strings")
}
