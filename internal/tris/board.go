// Package tris implements the rules of the 3x3 grid game: board state,
// win detection and draw detection. It knows nothing about players,
// connections or matchmaking.
package tris

import "errors"

type Mark string

const (
	MarkEmpty Mark = ""
	MarkX     Mark = "X"
	MarkO     Mark = "O"
)

var (
	ErrOutOfRange   = errors.New("coordinates out of range")
	ErrCellOccupied = errors.New("cell already occupied")
)

// Board is a 3x3 grid indexed board[x][y].
type Board [3][3]Mark

// Place sets the mark at (x, y). The cell must be inside the grid and empty.
func (b *Board) Place(x, y int, m Mark) error {
	if x < 0 || x > 2 || y < 0 || y > 2 {
		return ErrOutOfRange
	}
	if b[x][y] != MarkEmpty {
		return ErrCellOccupied
	}
	b[x][y] = m
	return nil
}

// Winner returns the mark owning a completed line, or MarkEmpty if no line
// is complete. The 8 candidate lines are 3 rows, 3 columns and 2 diagonals.
func (b Board) Winner() Mark {
	for i := 0; i < 3; i++ {
		if b[i][0] != MarkEmpty && b[i][0] == b[i][1] && b[i][1] == b[i][2] {
			return b[i][0]
		}
		if b[0][i] != MarkEmpty && b[0][i] == b[1][i] && b[1][i] == b[2][i] {
			return b[0][i]
		}
	}
	if b[1][1] != MarkEmpty {
		if b[0][0] == b[1][1] && b[1][1] == b[2][2] {
			return b[1][1]
		}
		if b[0][2] == b[1][1] && b[1][1] == b[2][0] {
			return b[1][1]
		}
	}
	return MarkEmpty
}

// Full reports whether every cell is occupied.
func (b Board) Full() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if b[i][j] == MarkEmpty {
				return false
			}
		}
	}
	return true
}

// Cells returns the board as plain strings, empty cells rendered as "".
func (b Board) Cells() [3][3]string {
	var out [3][3]string
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = string(b[i][j])
		}
	}
	return out
}
