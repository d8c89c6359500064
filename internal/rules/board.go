package rules

import (
	"errors"
	"strings"
)

// Piece letters follow the deck tokens: lowercase is white, uppercase is
// black, 0 is an empty square.
const (
	KindPawn   byte = 'p'
	KindKnight byte = 'n'
	KindBishop byte = 'b'
	KindRook   byte = 'r'
	KindQueen  byte = 'q'
	KindKing   byte = 'k'
)

var ErrBadSquare = errors.New("bad square")

// Board is an 8x8 grid indexed [rank][file], rank 0 = white's home rank.
type Board struct {
	sq [8][8]byte
}

// NewBoard returns the standard chess starting position.
func NewBoard() Board {
	var b Board
	back := []byte("rnbqkbnr")
	for f := 0; f < 8; f++ {
		b.sq[0][f] = back[f]
		b.sq[1][f] = 'p'
		b.sq[6][f] = 'P'
		b.sq[7][f] = upper(back[f])
	}
	return b
}

func (b Board) At(file, rank int) byte { return b.sq[rank][file] }

func (b *Board) set(file, rank int, p byte) { b.sq[rank][file] = p }

// String renders the board FEN-style, rank 8 first, digits for empty runs.
func (b Board) String() string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		empties := 0
		for f := 0; f < 8; f++ {
			p := b.sq[r][f]
			if p == 0 {
				empties++
				continue
			}
			if empties > 0 {
				sb.WriteByte('0' + byte(empties))
				empties = 0
			}
			sb.WriteByte(p)
		}
		if empties > 0 {
			sb.WriteByte('0' + byte(empties))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// ParseBoard is the inverse of String.
func ParseBoard(s string) (Board, error) {
	var b Board
	ranks := strings.Split(s, "/")
	if len(ranks) != 8 {
		return b, errors.New("bad board string")
	}
	for i, row := range ranks {
		r := 7 - i
		f := 0
		for j := 0; j < len(row); j++ {
			ch := row[j]
			if ch >= '1' && ch <= '8' {
				f += int(ch - '0')
				continue
			}
			switch Kind(ch) {
			case KindPawn, KindKnight, KindBishop, KindRook, KindQueen, KindKing:
				if f > 7 {
					return b, errors.New("bad board string")
				}
				b.sq[r][f] = ch
				f++
			default:
				return b, errors.New("bad board string")
			}
		}
		if f != 8 {
			return b, errors.New("bad board string")
		}
	}
	return b, nil
}

// ParseSquare converts algebraic notation ("e2") to file/rank indexes.
func ParseSquare(s string) (file, rank int, err error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, 0, ErrBadSquare
	}
	return int(s[0] - 'a'), int(s[1] - '1'), nil
}

func squareName(file, rank int) string {
	return string([]byte{byte('a' + file), byte('1' + rank)})
}

func PieceColor(p byte) Color {
	if p >= 'a' && p <= 'z' {
		return White
	}
	return Black
}

// Kind lowercases a piece letter to its card token.
func Kind(p byte) byte {
	if p >= 'A' && p <= 'Z' {
		return p + ('a' - 'A')
	}
	return p
}

func upper(p byte) byte {
	if p >= 'a' && p <= 'z' {
		return p - ('a' - 'A')
	}
	return p
}

// colored returns the piece letter for kind k owned by c.
func colored(k byte, c Color) byte {
	if c == White {
		return k
	}
	return upper(k)
}

func (b Board) kingSquare(c Color) (file, rank int, ok bool) {
	king := colored(KindKing, c)
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if b.sq[r][f] == king {
				return f, r, true
			}
		}
	}
	return 0, 0, false
}
