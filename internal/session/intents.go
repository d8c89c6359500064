package session

import (
	"github.com/DoyleJ11/metachess-backend/internal/game"
	"github.com/DoyleJ11/metachess-backend/internal/protocol"
	"github.com/DoyleJ11/metachess-backend/internal/rules"
)

func (s *Session) handleIntent(c rules.Color, it protocol.Intent) {
	switch intent := it.(type) {
	case protocol.MoveIntent:
		s.handleMove(c, intent)
	case protocol.PassIntent:
		s.handlePass(c)
	case protocol.CheckValidMoves:
		s.handleCheckValidMoves(c)
	case protocol.ResignIntent:
		s.handleResign(c)
	case protocol.RematchOffer:
		s.handleRematchOffer(c)
	default:
		s.errTo(c, "unsupported request for an active game")
	}
}

func (s *Session) errTo(c rules.Color, msg string) {
	s.sendTo(c, protocol.Error(msg))
}

// requireTurn validates the shared preconditions of every turn action.
func (s *Session) requireTurn(c rules.Color) bool {
	if s.phase != PhaseActive {
		s.errTo(c, "game is not active")
		return false
	}
	if s.turn != c {
		s.errTo(c, "not your turn")
		return false
	}
	return true
}

func (s *Session) handleMove(c rules.Color, it protocol.MoveIntent) {
	if !s.requireTurn(c) {
		return
	}
	st := s.seats[c]
	if it.Move.HandIndex < 0 || it.Move.HandIndex >= len(st.hand) {
		s.errTo(c, "invalid hand index")
		return
	}
	card := st.hand[it.Move.HandIndex]
	if it.Move.PieceType != "" && rules.Kind(it.Move.PieceType[0]) != card.Kind() {
		s.errTo(c, "card does not match piece type")
		return
	}

	ff, fr, err := rules.ParseSquare(it.Move.From)
	if err != nil {
		s.errTo(c, "illegal move")
		return
	}
	piece := s.board.At(ff, fr)
	if piece == 0 || rules.PieceColor(piece) != c {
		s.errTo(c, "no piece of yours on that square")
		return
	}
	if rules.Kind(piece) != card.Kind() {
		s.errTo(c, "card does not allow moving that piece")
		return
	}

	mv := rules.Move{From: it.Move.From, To: it.Move.To}
	if it.Move.Promotion != "" {
		mv.Promotion = it.Move.Promotion[0]
	}
	next, outcome, err := s.oracle.ApplyMove(s.board, c, mv)
	if err != nil {
		// rejected moves reach only the mover; nothing was mutated
		s.errTo(c, "illegal move")
		return
	}

	// Everything validated; commit. The clock settles first and may end
	// the game by timeout instead, discarding the move.
	if !s.commitClock(c) {
		return
	}

	s.board = next
	st.hand = append(st.hand[:it.Move.HandIndex], st.hand[it.Move.HandIndex+1:]...)
	st.hand = st.deck.TopUp(st.hand)
	s.touch()

	if rules.Kind(outcome.Captured) == rules.KindKing && outcome.Captured != 0 {
		// the meta-rule: taking the king ends the game before any
		// checkmate bookkeeping
		s.broadcastMove(c, it.Move, outcome)
		s.endGame("king_capture", c)
		return
	}
	if outcome.IsCheckmate {
		s.broadcastMove(c, it.Move, outcome)
		s.endGame("checkmate", c)
		return
	}

	s.turn = c.Other()
	s.broadcastMove(c, it.Move, outcome)
}

// broadcastMove tells the mover its refreshed hand and the opponent the
// committed move; both see counts, clocks, and whose turn it is.
func (s *Session) broadcastMove(c rules.Color, mv protocol.MovePayload, outcome rules.Outcome) {
	base := protocol.ServerMessage{
		GameID:      s.id,
		Board:       s.board.String(),
		WhiteDeck:   protocol.Int(s.seats[rules.White].deck.Len()),
		BlackDeck:   protocol.Int(s.seats[rules.Black].deck.Len()),
		CurrentTurn: string(s.turn),
		Clock:       s.clockInfo(),
	}

	mine := base
	mine.Type = protocol.MsgHandUpdate
	if c == rules.White {
		mine.WhiteHand = game.Strings(s.seats[rules.White].hand)
	} else {
		mine.BlackHand = game.Strings(s.seats[rules.Black].hand)
	}
	s.sendTo(c, mine)

	theirs := base
	theirs.Type = protocol.MsgOpponentMove
	theirs.Move = &mv
	theirs.Player = string(c)
	theirs.IsCheck = outcome.IsCheck
	s.sendTo(c.Other(), theirs)
}

func (s *Session) handlePass(c rules.Color) {
	if !s.requireTurn(c) {
		return
	}
	st := s.seats[c]
	if st.deck.Empty() {
		s.errTo(c, "cannot pass with an empty deck")
		return
	}
	if !s.commitClock(c) {
		return
	}

	// the whole hand is discarded, not returned to the deck
	st.hand = st.deck.Draw(game.HandSize)
	s.turn = c.Other()
	s.touch()

	for _, side := range []rules.Color{rules.White, rules.Black} {
		msg := protocol.ServerMessage{
			Type:          protocol.MsgPassUpdate,
			GameID:        s.id,
			PassingPlayer: string(c),
			WhiteDeck:     protocol.Int(s.seats[rules.White].deck.Len()),
			BlackDeck:     protocol.Int(s.seats[rules.Black].deck.Len()),
			CurrentTurn:   string(s.turn),
			Clock:         s.clockInfo(),
		}
		if side == rules.White {
			msg.WhiteHand = game.Strings(s.seats[rules.White].hand)
		} else {
			msg.BlackHand = game.Strings(s.seats[rules.Black].hand)
		}
		s.sendTo(side, msg)
	}
}

// handleCheckValidMoves forces redraws while the hand has no playable card
// and the deck lasts; exhausting both loses the game.
func (s *Session) handleCheckValidMoves(c rules.Color) {
	if !s.requireTurn(c) {
		return
	}
	st := s.seats[c]
	redrawn := false
	for !s.handHasLegalMove(c) {
		if st.deck.Empty() {
			s.endGame("no_valid_moves", c.Other())
			return
		}
		st.hand = st.deck.Draw(game.HandSize)
		redrawn = true
	}
	if !redrawn {
		return
	}
	s.touch()
	for _, side := range []rules.Color{rules.White, rules.Black} {
		msg := protocol.ServerMessage{
			Type:        protocol.MsgRedrawUpdate,
			GameID:      s.id,
			Player:      string(c),
			WhiteDeck:   protocol.Int(s.seats[rules.White].deck.Len()),
			BlackDeck:   protocol.Int(s.seats[rules.Black].deck.Len()),
			CurrentTurn: string(s.turn),
		}
		if side == rules.White {
			msg.WhiteHand = game.Strings(s.seats[rules.White].hand)
		} else {
			msg.BlackHand = game.Strings(s.seats[rules.Black].hand)
		}
		s.sendTo(side, msg)
	}
}

func (s *Session) handHasLegalMove(c rules.Color) bool {
	legal := s.oracle.LegalMoves(s.board, c)
	for _, card := range s.seats[c].hand {
		for _, m := range legal {
			ff, fr, err := rules.ParseSquare(m.From)
			if err != nil {
				continue
			}
			if rules.Kind(s.board.At(ff, fr)) == card.Kind() {
				return true
			}
		}
	}
	return false
}

func (s *Session) handleResign(c rules.Color) {
	if s.phase != PhaseActive {
		s.errTo(c, "game is not active")
		return
	}
	s.touch()
	s.endGame("resignation", c.Other())
}

func (s *Session) handleRematchOffer(c rules.Color) {
	if s.phase != PhaseOver {
		s.errTo(c, "game is not over")
		return
	}
	if s.rematchOffers[c] {
		return
	}
	s.rematchOffers[c] = true
	s.touch()
	if s.rematchOffers[c.Other()] {
		req := RematchRequest{OldGameID: s.id, Players: map[rules.Color]RematchPlayer{}}
		for color, st := range s.seats {
			req.Players[color] = RematchPlayer{PlayerID: st.playerID, Client: st.client}
		}
		s.reg.Rematch(req)
		return
	}
	s.sendTo(c.Other(), protocol.ServerMessage{
		Type:   protocol.MsgRematchOfferReceived,
		GameID: s.id,
		Player: string(c),
	})
}

func (s *Session) endGame(reason string, winner rules.Color) {
	s.phase = PhaseOver
	s.overAt = s.clk.Now()
	s.clockStarted = false
	s.endReason = reason
	s.winner = winner
	s.log.Infow("game over", "reason", reason, "winner", winner)
	msg := protocol.ServerMessage{
		Type:   protocol.MsgGameOver,
		GameID: s.id,
		Reason: reason,
		Winner: string(winner),
		Loser:  string(winner.Other()),
		Clock:  s.clockInfo(),
	}
	s.sendTo(rules.White, msg)
	s.sendTo(rules.Black, msg)
}
