package rules

var knightOffsets = [8][2]int{
	{1, 2}, {2, 1}, {2, -1}, {1, -2},
	{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
}

var kingOffsets = [8][2]int{
	{0, 1}, {1, 1}, {1, 0}, {1, -1},
	{0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
}

var bishopRays = [4][2]int{{1, 1}, {1, -1}, {-1, -1}, {-1, 1}}
var rookRays = [4][2]int{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}

func onBoard(f, r int) bool { return f >= 0 && f < 8 && r >= 0 && r < 8 }

// movesFrom appends every square reachable by the piece on (file, rank).
// Movement is pure geometry: kings may walk into attacked squares because
// the variant resolves check by capture, not by move restriction.
func movesFrom(b Board, file, rank int) [][2]int {
	p := b.At(file, rank)
	if p == 0 {
		return nil
	}
	own := PieceColor(p)
	var out [][2]int

	target := func(f, r int) bool {
		// reports whether the ray continues past (f, r)
		if !onBoard(f, r) {
			return false
		}
		q := b.At(f, r)
		if q == 0 {
			out = append(out, [2]int{f, r})
			return true
		}
		if PieceColor(q) != own {
			out = append(out, [2]int{f, r})
		}
		return false
	}

	switch Kind(p) {
	case KindPawn:
		dir, home := 1, 1
		if own == Black {
			dir, home = -1, 6
		}
		if onBoard(file, rank+dir) && b.At(file, rank+dir) == 0 {
			out = append(out, [2]int{file, rank + dir})
			if rank == home && b.At(file, rank+2*dir) == 0 {
				out = append(out, [2]int{file, rank + 2*dir})
			}
		}
		for _, df := range []int{-1, 1} {
			f, r := file+df, rank+dir
			if onBoard(f, r) {
				if q := b.At(f, r); q != 0 && PieceColor(q) != own {
					out = append(out, [2]int{f, r})
				}
			}
		}
	case KindKnight:
		for _, o := range knightOffsets {
			target(file+o[0], rank+o[1])
		}
	case KindKing:
		for _, o := range kingOffsets {
			target(file+o[0], rank+o[1])
		}
	case KindBishop:
		for _, ray := range bishopRays {
			for f, r := file+ray[0], rank+ray[1]; target(f, r); f, r = f+ray[0], r+ray[1] {
			}
		}
	case KindRook:
		for _, ray := range rookRays {
			for f, r := file+ray[0], rank+ray[1]; target(f, r); f, r = f+ray[0], r+ray[1] {
			}
		}
	case KindQueen:
		for _, ray := range append(bishopRays[:], rookRays[:]...) {
			for f, r := file+ray[0], rank+ray[1]; target(f, r); f, r = f+ray[0], r+ray[1] {
			}
		}
	}
	return out
}

// attacked reports whether any piece of the given color attacks (file, rank).
func attacked(b Board, file, rank int, by Color) bool {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p := b.At(f, r)
			if p == 0 || PieceColor(p) != by {
				continue
			}
			if Kind(p) == KindPawn {
				// pawn pushes don't attack; only its capture squares do
				dir := 1
				if by == Black {
					dir = -1
				}
				if r+dir == rank && (f-1 == file || f+1 == file) {
					return true
				}
				continue
			}
			for _, sq := range movesFrom(b, f, r) {
				if sq[0] == file && sq[1] == rank {
					return true
				}
			}
		}
	}
	return false
}

func inCheck(b Board, c Color) bool {
	f, r, ok := b.kingSquare(c)
	if !ok {
		return false
	}
	return attacked(b, f, r, c.Other())
}
