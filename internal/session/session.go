// Package session implements the authoritative state of one match as a
// single-owner actor: a goroutine that drains an inbox of typed messages
// and a clock ticker, so intents, ticks, and reconnections are applied in
// one total order per session.
package session

import (
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/metachess-backend/internal/game"
	"github.com/DoyleJ11/metachess-backend/internal/protocol"
	"github.com/DoyleJ11/metachess-backend/internal/rules"
)

type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseActive  Phase = "active"
	PhaseOver    Phase = "over"
)

// Timing groups the wall-clock knobs a session runs on.
type Timing struct {
	BaseTime        time.Duration
	Increment       time.Duration
	TickInterval    time.Duration
	DisconnectGrace time.Duration
	WaitingTimeout  time.Duration
	RematchGrace    time.Duration
	IdleTimeout     time.Duration
}

// Registry is the session's narrow view of its owner. Both calls are
// asynchronous; the session never blocks on its registry.
type Registry interface {
	// Evict removes a terminated session from the owning table.
	Evict(id string)
	// Rematch asks for a successor session with sides swapped.
	Rematch(req RematchRequest)
}

type RematchRequest struct {
	OldGameID string
	Players   map[rules.Color]RematchPlayer
}

type RematchPlayer struct {
	PlayerID string
	Client   *Client
}

type seat struct {
	playerID       string
	client         *Client
	deck           *game.Deck
	hand           []game.Card
	disconnectedAt time.Time
}

type Session struct {
	id    string
	inbox chan Msg
	done  chan struct{}

	phase Phase
	board rules.Board
	turn  rules.Color
	seats map[rules.Color]*seat

	remaining    map[rules.Color]time.Duration
	clockStarted bool
	lastTick     time.Time

	rematchOffers map[rules.Color]bool
	endReason     string
	winner        rules.Color

	createdAt    time.Time
	lastActivity time.Time
	overAt       time.Time

	timing Timing
	oracle rules.Oracle
	clk    clockwork.Clock
	reg    Registry
	log    *zap.SugaredLogger
	ticker clockwork.Ticker
}

// New builds a session with fresh shuffled decks and both opening hands
// drawn. Seats are unbound; call BindSeat before Start.
func New(id string, timing Timing, oracle rules.Oracle, clk clockwork.Clock,
	reg Registry, log *zap.SugaredLogger, rng *rand.Rand) *Session {

	now := clk.Now()
	s := &Session{
		id:            id,
		inbox:         make(chan Msg, 64),
		done:          make(chan struct{}),
		phase:         PhaseWaiting,
		board:         rules.NewBoard(),
		turn:          rules.White,
		seats:         map[rules.Color]*seat{},
		remaining:     map[rules.Color]time.Duration{},
		rematchOffers: map[rules.Color]bool{},
		createdAt:     now,
		lastActivity:  now,
		timing:        timing,
		oracle:        oracle,
		clk:           clk,
		reg:           reg,
		log:           log.With("session_id", id),
	}
	for _, c := range []rules.Color{rules.White, rules.Black} {
		deck := game.NewShuffledDeck(c, rng)
		s.seats[c] = &seat{deck: deck, hand: deck.Draw(game.HandSize)}
		s.remaining[c] = timing.BaseTime
	}
	return s
}

func (s *Session) ID() string { return s.id }

// BindSeat seats a player before the actor starts. Once both seats hold a
// player the session is Active.
func (s *Session) BindSeat(c rules.Color, playerID string, client *Client) {
	st := s.seats[c]
	st.playerID = playerID
	st.client = client
	if client == nil {
		// seated but absent; the disconnect grace window applies from now
		st.disconnectedAt = s.clk.Now()
	}
	if s.seats[rules.White].playerID != "" && s.seats[rules.Black].playerID != "" {
		s.phase = PhaseActive
	}
}

// Start launches the actor loop and its ticker.
func (s *Session) Start() {
	s.ticker = s.clk.NewTicker(s.timing.TickInterval)
	go s.loop()
}

// Send delivers a message to the actor, reporting false if the session has
// terminated. Senders holding a reply channel must treat false as NotFound.
func (s *Session) Send(m Msg) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- m:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.Chan():
			s.onTick()
		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Session) handle(m Msg) {
	switch msg := m.(type) {
	case Join:
		s.handleJoin(msg)
	case Reconnect:
		s.handleReconnect(msg)
	case Detach:
		s.handleDetach(msg)
	case FromClient:
		s.handleIntent(msg.Color, msg.Intent)
	case Touch:
		s.touch()
	case GetState:
		msg.Reply <- s.view()
	case Shutdown:
		s.terminate("shutdown")
	}
}

// terminate stops the actor and hands the id back to the registry. Queued
// join/reconnect messages are answered NotFound so no caller hangs.
func (s *Session) terminate(why string) {
	select {
	case <-s.done:
		return
	default:
	}
	s.log.Infow("session terminated", "why", why, "phase", s.phase)
	close(s.done)
	if s.ticker != nil {
		s.ticker.Stop()
	}
	for {
		select {
		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- JoinResult{Err: ErrNotFound}
			case Reconnect:
				msg.Reply <- JoinResult{Err: ErrNotFound}
			case GetState:
				msg.Reply <- s.view()
			}
		default:
			s.reg.Evict(s.id)
			return
		}
	}
}

func (s *Session) touch() { s.lastActivity = s.clk.Now() }

func (s *Session) handleJoin(m Join) {
	var open rules.Color
	switch {
	case s.seats[rules.White].playerID == "":
		open = rules.White
	case s.seats[rules.Black].playerID == "":
		open = rules.Black
	default:
		m.Reply <- JoinResult{Err: ErrSessionFull}
		return
	}
	if s.seats[open.Other()].playerID == m.PlayerID {
		m.Reply <- JoinResult{Err: ErrForbidden}
		return
	}
	s.BindSeat(open, m.PlayerID, m.Client)
	s.touch()
	s.log.Infow("player joined", "color", open)
	m.Reply <- JoinResult{Color: open, Sess: s, Msg: s.SnapshotFor(open, protocol.MsgGameJoined)}
	s.sendTo(open.Other(), protocol.ServerMessage{
		Type:          protocol.MsgOpponentJoined,
		GameID:        s.id,
		OpponentColor: string(open),
		CreatorColor:  string(open.Other()),
		CurrentTurn:   string(s.turn),
	})
}

func (s *Session) handleReconnect(m Reconnect) {
	color, ok := s.colorOf(m.PlayerID)
	if !ok {
		m.Reply <- JoinResult{Err: ErrForbidden}
		return
	}
	st := s.seats[color]
	if st.client != nil && st.client.ID != m.Client.ID {
		m.Reply <- JoinResult{Err: ErrSlotOccupied}
		return
	}
	// Rebinding the same client id is idempotent: same snapshot, no side
	// effects beyond the timestamp refresh.
	already := st.client != nil && st.client.ID == m.Client.ID
	st.client = m.Client
	st.disconnectedAt = time.Time{}
	s.touch()
	m.Reply <- JoinResult{Color: color, Sess: s, Msg: s.SnapshotFor(color, protocol.MsgReconnectionOK)}
	if !already {
		s.log.Infow("player reconnected", "color", color)
		s.sendTo(color.Other(), protocol.ServerMessage{
			Type:   protocol.MsgOpponentReconnected,
			GameID: s.id,
			Player: string(color),
		})
	}
}

func (s *Session) handleDetach(m Detach) {
	st := s.seats[m.Color]
	if st == nil || st.client == nil || st.client.ID != m.ClientID {
		return
	}
	st.client = nil
	st.disconnectedAt = s.clk.Now()
	s.log.Infow("player disconnected", "color", m.Color)
	s.sendTo(m.Color.Other(), protocol.ServerMessage{
		Type:   protocol.MsgOpponentDisconnected,
		GameID: s.id,
		Player: string(m.Color),
	})
}

func (s *Session) colorOf(playerID string) (rules.Color, bool) {
	for _, c := range []rules.Color{rules.White, rules.Black} {
		if s.seats[c].playerID != "" && s.seats[c].playerID == playerID {
			return c, true
		}
	}
	return "", false
}

// sendTo writes a message to one side without ever blocking the actor; a
// full outbox drops the message and logs, matching the fire-and-forget
// transport contract.
func (s *Session) sendTo(c rules.Color, msg protocol.ServerMessage) {
	st := s.seats[c]
	if st == nil || st.client == nil {
		return
	}
	select {
	case st.client.Outbox <- msg:
	default:
		s.log.Warnw("dropping message for slow client", "color", c, "type", msg.Type)
	}
}

func (s *Session) clockInfo() *protocol.ClockInfo {
	return &protocol.ClockInfo{
		White: s.remaining[rules.White].Seconds(),
		Black: s.remaining[rules.Black].Seconds(),
	}
}

// SnapshotFor builds the full state message one side is allowed to see:
// its own hand, both decks as counts only.
func (s *Session) SnapshotFor(c rules.Color, msgType string) protocol.ServerMessage {
	msg := protocol.ServerMessage{
		Type:        msgType,
		GameID:      s.id,
		PlayerColor: string(c),
		Board:       s.board.String(),
		WhiteDeck:   protocol.Int(s.seats[rules.White].deck.Len()),
		BlackDeck:   protocol.Int(s.seats[rules.Black].deck.Len()),
		CurrentTurn: string(s.turn),
		Phase:       string(s.phase),
		Clock:       s.clockInfo(),
	}
	if c == rules.White {
		msg.WhiteHand = game.Strings(s.seats[rules.White].hand)
	} else {
		msg.BlackHand = game.Strings(s.seats[rules.Black].hand)
	}
	return msg
}

func (s *Session) view() View {
	v := View{
		ID:            s.id,
		Phase:         s.phase,
		Turn:          s.turn,
		Board:         s.board.String(),
		Remaining:     map[rules.Color]time.Duration{},
		ClockStarted:  s.clockStarted,
		Hands:         map[rules.Color][]game.Card{},
		DeckCounts:    map[rules.Color]int{},
		Connected:     map[rules.Color]bool{},
		PlayerIDs:     map[rules.Color]string{},
		RematchOffers: map[rules.Color]bool{},
		EndReason:     s.endReason,
		Winner:        s.winner,
	}
	for c, st := range s.seats {
		v.Remaining[c] = s.remaining[c]
		v.Hands[c] = append([]game.Card(nil), st.hand...)
		v.DeckCounts[c] = st.deck.Len()
		v.Connected[c] = st.client != nil
		v.PlayerIDs[c] = st.playerID
		v.RematchOffers[c] = s.rematchOffers[c]
	}
	return v
}
