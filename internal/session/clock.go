package session

import (
	"time"

	"github.com/DoyleJ11/metachess-backend/internal/protocol"
	"github.com/DoyleJ11/metachess-backend/internal/rules"
)

// commitClock settles the clock for a committed action by c. It debits the
// time elapsed since the last settlement, and either ends the game on
// timeout (returning false: the action is discarded) or credits the Fischer
// increment. White's first committed action arms the clock.
func (s *Session) commitClock(c rules.Color) bool {
	now := s.clk.Now()
	if !s.clockStarted {
		s.clockStarted = true
		s.lastTick = now
		s.remaining[c] += s.timing.Increment
		return true
	}
	elapsed := now.Sub(s.lastTick)
	s.lastTick = now
	s.remaining[c] -= elapsed
	if s.remaining[c] <= 0 {
		s.remaining[c] = 0
		s.timeOut(c)
		return false
	}
	s.remaining[c] += s.timing.Increment
	return true
}

func (s *Session) timeOut(loser rules.Color) {
	msg := protocol.ServerMessage{
		Type:   protocol.MsgTimeOut,
		GameID: s.id,
		Player: string(loser),
		Winner: string(loser.Other()),
	}
	s.sendTo(rules.White, msg)
	s.sendTo(rules.Black, msg)
	s.endGame("time_out", loser.Other())
}

// onTick runs once per tick interval inside the actor loop: it debits the
// running clock and enforces every eviction deadline. Because it shares the
// loop with message handling, a tick can never interleave with a move.
func (s *Session) onTick() {
	now := s.clk.Now()

	switch s.phase {
	case PhaseWaiting:
		if now.Sub(s.createdAt) > s.timing.WaitingTimeout {
			s.terminate("no opponent joined")
			return
		}
		if s.graceExpired(now) {
			s.terminate("creator left")
			return
		}

	case PhaseActive:
		if gone, ok := s.graceExpiredSide(now); ok {
			remaining := gone.Other()
			if s.seats[remaining].client != nil {
				s.endGame("opponent_left", remaining)
			}
			s.terminate("disconnect grace expired")
			return
		}
		if now.Sub(s.lastActivity) > s.timing.IdleTimeout {
			s.terminate("idle")
			return
		}
		if s.clockStarted {
			elapsed := now.Sub(s.lastTick)
			s.lastTick = now
			s.remaining[s.turn] -= elapsed
			if s.remaining[s.turn] <= 0 {
				s.remaining[s.turn] = 0
				s.timeOut(s.turn)
				return
			}
			update := protocol.ServerMessage{
				Type:        protocol.MsgTimeUpdate,
				GameID:      s.id,
				CurrentTurn: string(s.turn),
				Clock:       s.clockInfo(),
			}
			s.sendTo(rules.White, update)
			s.sendTo(rules.Black, update)
		}

	case PhaseOver:
		if now.Sub(s.overAt) > s.timing.RematchGrace {
			s.terminate("rematch window closed")
			return
		}
		if s.graceExpired(now) && s.seats[rules.White].client == nil && s.seats[rules.Black].client == nil {
			s.terminate("both players left")
			return
		}
	}
}

// graceExpired reports whether any seated player has been disconnected for
// longer than the grace window.
func (s *Session) graceExpired(now time.Time) bool {
	_, ok := s.graceExpiredSide(now)
	return ok
}

func (s *Session) graceExpiredSide(now time.Time) (rules.Color, bool) {
	for _, c := range []rules.Color{rules.White, rules.Black} {
		st := s.seats[c]
		if st.playerID == "" || st.client != nil || st.disconnectedAt.IsZero() {
			continue
		}
		if now.Sub(st.disconnectedAt) > s.timing.DisconnectGrace {
			return c, true
		}
	}
	return "", false
}
