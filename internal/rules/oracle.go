// Package rules is the move-legality oracle for the chess variant. The
// coordinator treats it as a black box: it owns the board representation
// and answers which moves are legal and what a committed move did.
package rules

import "errors"

var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrBadPromotion = errors.New("bad promotion piece")
)

type Move struct {
	From      string
	To        string
	Promotion byte // card token of the promoted piece; 0 defaults to queen
}

// Outcome describes the committed effects of a move.
type Outcome struct {
	Captured    byte // piece letter removed from To, 0 if none
	IsCheck     bool // opponent king attacked in the resulting position
	IsCheckmate bool
}

type Oracle interface {
	// LegalMoves enumerates every move side may play on b.
	LegalMoves(b Board, side Color) []Move
	// ApplyMove validates m for side and returns the resulting board.
	// The input board is never mutated; on error the outcome is zero.
	ApplyMove(b Board, side Color, m Move) (Board, Outcome, error)
}

type oracle struct{}

func NewOracle() Oracle { return oracle{} }

func (oracle) LegalMoves(b Board, side Color) []Move {
	var out []Move
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p := b.At(f, r)
			if p == 0 || PieceColor(p) != side {
				continue
			}
			for _, sq := range movesFrom(b, f, r) {
				m := Move{From: squareName(f, r), To: squareName(sq[0], sq[1])}
				if Kind(p) == KindPawn && (sq[1] == 7 || sq[1] == 0) {
					m.Promotion = KindQueen
				}
				out = append(out, m)
			}
		}
	}
	return out
}

func (oracle) ApplyMove(b Board, side Color, m Move) (Board, Outcome, error) {
	ff, fr, err := ParseSquare(m.From)
	if err != nil {
		return b, Outcome{}, ErrIllegalMove
	}
	tf, tr, err := ParseSquare(m.To)
	if err != nil {
		return b, Outcome{}, ErrIllegalMove
	}
	p := b.At(ff, fr)
	if p == 0 || PieceColor(p) != side {
		return b, Outcome{}, ErrIllegalMove
	}
	reachable := false
	for _, sq := range movesFrom(b, ff, fr) {
		if sq[0] == tf && sq[1] == tr {
			reachable = true
			break
		}
	}
	if !reachable {
		return b, Outcome{}, ErrIllegalMove
	}

	next := b
	out := Outcome{Captured: next.At(tf, tr)}
	next.set(ff, fr, 0)
	placed := p
	if Kind(p) == KindPawn && (tr == 7 || tr == 0) {
		promo := m.Promotion
		if promo == 0 {
			promo = KindQueen
		}
		switch Kind(promo) {
		case KindQueen, KindRook, KindBishop, KindKnight:
			placed = colored(Kind(promo), side)
		default:
			return b, Outcome{}, ErrBadPromotion
		}
	}
	next.set(tf, tr, placed)

	opp := side.Other()
	if Kind(out.Captured) == KindKing {
		// king gone; check is meaningless, the session ends the game
		return next, out, nil
	}
	if inCheck(next, opp) {
		out.IsCheck = true
		out.IsCheckmate = !hasEscape(next, opp)
	}
	return next, out, nil
}

// hasEscape reports whether c has any move that leaves its king unattacked.
func hasEscape(b Board, c Color) bool {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p := b.At(f, r)
			if p == 0 || PieceColor(p) != c {
				continue
			}
			for _, sq := range movesFrom(b, f, r) {
				next := b
				next.set(f, r, 0)
				next.set(sq[0], sq[1], p)
				if !inCheck(next, c) {
					return true
				}
			}
		}
	}
	return false
}
