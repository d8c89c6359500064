package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/metachess-backend/internal/game"
	"github.com/DoyleJ11/metachess-backend/internal/protocol"
	"github.com/DoyleJ11/metachess-backend/internal/rules"
)

type fakeRegistry struct {
	evicted chan string
	rematch chan RematchRequest
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		evicted: make(chan string, 4),
		rematch: make(chan RematchRequest, 4),
	}
}

func (f *fakeRegistry) Evict(id string)            { f.evicted <- id }
func (f *fakeRegistry) Rematch(req RematchRequest) { f.rematch <- req }

func testTiming() Timing {
	return Timing{
		BaseTime:        time.Minute,
		Increment:       0,
		TickInterval:    time.Second,
		DisconnectGrace: 60 * time.Second,
		WaitingTimeout:  5 * time.Minute,
		RematchGrace:    5 * time.Minute,
		IdleTimeout:     30 * time.Minute,
	}
}

type fixture struct {
	s    *Session
	fc   *clockwork.FakeClock
	reg  *fakeRegistry
	wOut chan protocol.ServerMessage
	bOut chan protocol.ServerMessage
	wCl  *Client
	bCl  *Client
}

// newFixture builds an unstarted session with both players seated; tests
// may adjust hands, decks, or the board before calling start.
func newFixture(t *testing.T, timing Timing) *fixture {
	t.Helper()
	f := &fixture{
		fc:   clockwork.NewFakeClock(),
		reg:  newFakeRegistry(),
		wOut: make(chan protocol.ServerMessage, 64),
		bOut: make(chan protocol.ServerMessage, 64),
	}
	f.wCl = &Client{ID: "conn-w", Outbox: f.wOut}
	f.bCl = &Client{ID: "conn-b", Outbox: f.bOut}
	f.s = New("game-1", timing, rules.NewOracle(), f.fc, f.reg,
		zaptest.NewLogger(t).Sugar(), rand.New(rand.NewSource(42)))
	f.s.BindSeat(rules.White, "alice", f.wCl)
	f.s.BindSeat(rules.Black, "bob", f.bCl)
	return f
}

func (f *fixture) start(t *testing.T) {
	f.s.Start()
	t.Cleanup(func() { f.s.Send(Shutdown{}) })
}

func cards(s string) []game.Card {
	out := make([]game.Card, len(s))
	for i := range s {
		out[i] = game.Card(s[i])
	}
	return out
}

func (f *fixture) view(t *testing.T) View {
	t.Helper()
	reply := make(chan View, 1)
	require.True(t, f.s.Send(GetState{Reply: reply}), "session terminated")
	select {
	case v := <-reply:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view")
		return View{}
	}
}

func (f *fixture) eventually(t *testing.T, cond func(View) bool, msg string) {
	t.Helper()
	require.Eventually(t, func() bool {
		reply := make(chan View, 1)
		if !f.s.Send(GetState{Reply: reply}) {
			return false
		}
		select {
		case v := <-reply:
			return cond(v)
		case <-time.After(time.Second):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, msg)
}

// waitFor receives messages until one of the wanted type arrives.
func waitFor(t *testing.T, ch chan protocol.ServerMessage, msgType string) protocol.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-ch:
			if m.Type == msgType {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
		}
	}
}

func expectNone(t *testing.T, ch chan protocol.ServerMessage, msgType string) {
	t.Helper()
	for {
		select {
		case m := <-ch:
			if m.Type == msgType {
				t.Fatalf("unexpected %q message: %+v", msgType, m)
			}
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func moveIntent(from, to string, idx int, piece string) protocol.MoveIntent {
	return protocol.MoveIntent{
		GameID: "game-1",
		Move:   protocol.MovePayload{From: from, To: to, HandIndex: idx, PieceType: piece},
	}
}

func TestMove_FlipsTurnAndRefillsHand(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("ppppp")
	f.s.seats[rules.Black].hand = cards("PPPPP")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "e4", 0, "p")})

	mine := waitFor(t, f.wOut, protocol.MsgHandUpdate)
	assert.Len(t, mine.WhiteHand, game.HandSize)
	assert.Empty(t, mine.BlackHand)
	assert.Equal(t, "black", mine.CurrentTurn)
	require.NotNil(t, mine.WhiteDeck)
	assert.Equal(t, 65, *mine.WhiteDeck)

	theirs := waitFor(t, f.bOut, protocol.MsgOpponentMove)
	require.NotNil(t, theirs.Move)
	assert.Equal(t, "e2", theirs.Move.From)
	assert.Equal(t, "e4", theirs.Move.To)
	assert.Empty(t, theirs.WhiteHand)

	f.s.Send(FromClient{Color: rules.Black, Intent: moveIntent("e7", "e5", 0, "p")})
	waitFor(t, f.bOut, protocol.MsgHandUpdate)

	v := f.view(t)
	assert.Equal(t, rules.White, v.Turn)
	assert.Equal(t, PhaseActive, v.Phase)
}

func TestMove_WrongTurnRejected(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.Black].hand = cards("PPPPP")
	f.start(t)

	f.s.Send(FromClient{Color: rules.Black, Intent: moveIntent("e7", "e5", 0, "p")})

	errMsg := waitFor(t, f.bOut, protocol.MsgError)
	assert.Equal(t, "not your turn", errMsg.Message)
	v := f.view(t)
	assert.Equal(t, rules.White, v.Turn)
	assert.Len(t, v.Hands[rules.Black], game.HandSize)
}

func TestMove_CardMustMatchPiece(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("nnnnn")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "e4", 0, "n")})

	errMsg := waitFor(t, f.wOut, protocol.MsgError)
	assert.Contains(t, errMsg.Message, "card")
	v := f.view(t)
	assert.Equal(t, rules.White, v.Turn)
	assert.Equal(t, cards("nnnnn"), v.Hands[rules.White])
}

func TestMove_BlackPlaysWithOwnCaseTokens(t *testing.T) {
	// black's hand travels as uppercase tokens; echoing one back must match
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("ppppp")
	f.s.seats[rules.Black].hand = cards("PPPPP")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "e4", 0, "p")})
	waitFor(t, f.wOut, protocol.MsgHandUpdate)

	f.s.Send(FromClient{Color: rules.Black, Intent: moveIntent("e7", "e5", 0, "P")})

	mine := waitFor(t, f.bOut, protocol.MsgHandUpdate)
	assert.Equal(t, "white", mine.CurrentTurn)
	v := f.view(t)
	assert.Equal(t, rules.White, v.Turn)
	assert.Contains(t, v.Board, "4P3", "black's pawn committed to e5")
}

func TestMove_IllegalMoveRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("ppppp")
	f.start(t)

	before := f.view(t)
	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "d4", 0, "p")})

	errMsg := waitFor(t, f.wOut, protocol.MsgError)
	assert.Equal(t, "illegal move", errMsg.Message)
	after := f.view(t)
	assert.Equal(t, before.Board, after.Board)
	assert.Equal(t, before.Hands, after.Hands)
	assert.Equal(t, rules.White, after.Turn)
}

func TestMove_KingCapturePrecedence(t *testing.T) {
	f := newFixture(t, testTiming())
	board, err := rules.ParseBoard("7K/6q1/8/8/8/8/8/k7")
	require.NoError(t, err)
	f.s.board = board
	f.s.seats[rules.White].hand = cards("qpppp")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("g7", "h8", 0, "q")})

	over := waitFor(t, f.wOut, protocol.MsgGameOver)
	assert.Equal(t, "king_capture", over.Reason)
	assert.Equal(t, "white", over.Winner)
	assert.Equal(t, "black", over.Loser)
	waitFor(t, f.bOut, protocol.MsgGameOver)

	v := f.view(t)
	assert.Equal(t, PhaseOver, v.Phase)
	assert.Equal(t, "king_capture", v.EndReason)
}

func TestMove_CheckmateEndsGame(t *testing.T) {
	f := newFixture(t, testTiming())
	// black to deliver fool's mate with the queen
	board, err := rules.ParseBoard("RNBQKBNR/PPPP1PPP/8/4P3/6p1/5p2/ppppp2p/rnbqkbnr")
	require.NoError(t, err)
	f.s.board = board
	f.s.turn = rules.Black
	f.s.seats[rules.Black].hand = cards("QPPPP")
	f.start(t)

	f.s.Send(FromClient{Color: rules.Black, Intent: moveIntent("d8", "h4", 0, "q")})

	over := waitFor(t, f.bOut, protocol.MsgGameOver)
	assert.Equal(t, "checkmate", over.Reason)
	assert.Equal(t, "black", over.Winner)
}

func TestPass_DiscardsWholeHandAndRedraws(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("ppppp")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: protocol.PassIntent{GameID: "game-1"}})

	mine := waitFor(t, f.wOut, protocol.MsgPassUpdate)
	assert.Equal(t, "white", mine.PassingPlayer)
	assert.Len(t, mine.WhiteHand, game.HandSize)
	require.NotNil(t, mine.WhiteDeck)
	assert.Equal(t, 61, *mine.WhiteDeck)
	assert.Equal(t, "black", mine.CurrentTurn)

	theirs := waitFor(t, f.bOut, protocol.MsgPassUpdate)
	assert.Empty(t, theirs.WhiteHand, "opponent must not see the redrawn hand")
	assert.Len(t, theirs.BlackHand, game.HandSize)
}

func TestPass_EmptyDeckRejected(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].deck = game.DeckOf()
	f.s.seats[rules.White].hand = cards("ppppp")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: protocol.PassIntent{GameID: "game-1"}})

	errMsg := waitFor(t, f.wOut, protocol.MsgError)
	assert.Equal(t, "cannot pass with an empty deck", errMsg.Message)
	v := f.view(t)
	assert.Equal(t, rules.White, v.Turn)
	assert.Equal(t, PhaseActive, v.Phase)
}

func TestCheckValidMoves_ForcedRedrawThenLoss(t *testing.T) {
	// queens are fully blocked in the opening position
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("qqqqq")
	f.s.seats[rules.White].deck = game.DeckOf('q', 'q', 'q')
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: protocol.CheckValidMoves{GameID: "game-1"}})

	over := waitFor(t, f.wOut, protocol.MsgGameOver)
	assert.Equal(t, "no_valid_moves", over.Reason)
	assert.Equal(t, "black", over.Winner)

	v := f.view(t)
	assert.Len(t, v.Hands[rules.White], 3, "the final redraw drew the last 3 cards")
	assert.Zero(t, v.DeckCounts[rules.White])
	assert.Equal(t, PhaseOver, v.Phase)
}

func TestCheckValidMoves_RedrawFindsPlayableHand(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("qqqqq")
	f.s.seats[rules.White].deck = game.DeckOf('p', 'p', 'p')
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: protocol.CheckValidMoves{GameID: "game-1"}})

	mine := waitFor(t, f.wOut, protocol.MsgRedrawUpdate)
	assert.Equal(t, []string{"p", "p", "p"}, mine.WhiteHand)
	theirs := waitFor(t, f.bOut, protocol.MsgRedrawUpdate)
	assert.Empty(t, theirs.WhiteHand)

	v := f.view(t)
	assert.Equal(t, PhaseActive, v.Phase)
	assert.Equal(t, rules.White, v.Turn, "a redraw is not a turn action")
}

func TestResign(t *testing.T) {
	f := newFixture(t, testTiming())
	f.start(t)

	f.s.Send(FromClient{Color: rules.Black, Intent: protocol.ResignIntent{GameID: "game-1"}})

	over := waitFor(t, f.wOut, protocol.MsgGameOver)
	assert.Equal(t, "resignation", over.Reason)
	assert.Equal(t, "white", over.Winner)
}

func TestClock_ArmsOnWhitesFirstAction(t *testing.T) {
	timing := testTiming()
	timing.Increment = 2 * time.Second
	timing.BaseTime = 10 * time.Second
	f := newFixture(t, timing)
	f.s.seats[rules.White].hand = cards("ppppp")
	f.start(t)

	// ticks before any action must not debit anyone
	f.fc.BlockUntil(1)
	f.fc.Advance(5 * time.Second)
	f.eventually(t, func(v View) bool {
		return !v.ClockStarted && v.Remaining[rules.White] == 10*time.Second
	}, "clock must not run before white's first action")

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "e4", 0, "p")})
	f.eventually(t, func(v View) bool {
		return v.ClockStarted && v.Remaining[rules.White] == 12*time.Second
	}, "arming grants the increment without any debit")
}

func TestClock_TickDebitsSideOnTurn(t *testing.T) {
	timing := testTiming()
	timing.BaseTime = 10 * time.Second
	f := newFixture(t, timing)
	f.s.seats[rules.White].hand = cards("ppppp")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "e4", 0, "p")})
	f.eventually(t, func(v View) bool { return v.Turn == rules.Black }, "move committed")

	f.fc.BlockUntil(1)
	f.fc.Advance(time.Second)

	update := waitFor(t, f.bOut, protocol.MsgTimeUpdate)
	require.NotNil(t, update.Clock)
	assert.Equal(t, "black", update.CurrentTurn)
	f.eventually(t, func(v View) bool {
		return v.Remaining[rules.Black] == 9*time.Second &&
			v.Remaining[rules.White] == 10*time.Second
	}, "only the side on turn is debited")
}

func TestClock_TimeoutScenario(t *testing.T) {
	timing := testTiming()
	timing.BaseTime = time.Second
	f := newFixture(t, timing)
	f.s.seats[rules.White].hand = cards("ppppp")
	f.s.seats[rules.Black].hand = cards("PPPPP")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "e4", 0, "p")})
	f.s.Send(FromClient{Color: rules.Black, Intent: moveIntent("e7", "e5", 0, "p")})
	f.eventually(t, func(v View) bool { return v.Turn == rules.White && v.ClockStarted }, "clock running, white on turn")

	f.fc.BlockUntil(1)
	f.fc.Advance(1500 * time.Millisecond)

	timeout := waitFor(t, f.wOut, protocol.MsgTimeOut)
	assert.Equal(t, "white", timeout.Player)
	assert.Equal(t, "black", timeout.Winner)
	over := waitFor(t, f.wOut, protocol.MsgGameOver)
	assert.Equal(t, "time_out", over.Reason)
	assert.Equal(t, "black", over.Winner)

	v := f.view(t)
	assert.Equal(t, PhaseOver, v.Phase)
	assert.Zero(t, v.Remaining[rules.White], "remaining time clamps at zero")

	// the clock is stopped: further ticks produce no time updates
	f.fc.Advance(3 * time.Second)
	expectNone(t, f.wOut, protocol.MsgTimeUpdate)
}

func TestHiddenInformation_NeverLeaksOpponentHand(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("ppppp")
	f.s.seats[rules.Black].hand = cards("PPPPP")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "e4", 0, "p")})
	f.s.Send(FromClient{Color: rules.Black, Intent: moveIntent("e7", "e5", 0, "p")})
	f.s.Send(FromClient{Color: rules.White, Intent: protocol.PassIntent{GameID: "game-1"}})
	f.eventually(t, func(v View) bool { return v.Turn == rules.Black }, "pass committed")

	drain := func(ch chan protocol.ServerMessage) []protocol.ServerMessage {
		var out []protocol.ServerMessage
		for {
			select {
			case m := <-ch:
				out = append(out, m)
			default:
				return out
			}
		}
	}
	for _, m := range drain(f.wOut) {
		assert.Empty(t, m.BlackHand, "white received black's hand in %q", m.Type)
	}
	for _, m := range drain(f.bOut) {
		assert.Empty(t, m.WhiteHand, "black received white's hand in %q", m.Type)
	}
}

func TestDisconnect_NotifiesOpponentAndStartsGrace(t *testing.T) {
	f := newFixture(t, testTiming())
	f.start(t)

	f.s.Send(Detach{Color: rules.Black, ClientID: "conn-b"})

	gone := waitFor(t, f.wOut, protocol.MsgOpponentDisconnected)
	assert.Equal(t, "black", gone.Player)
	f.eventually(t, func(v View) bool { return !v.Connected[rules.Black] }, "seat vacated")

	// a stale detach for a superseded connection id is ignored
	f.s.Send(Detach{Color: rules.White, ClientID: "conn-old"})
	v := f.view(t)
	assert.True(t, v.Connected[rules.White])
}

func TestReconnect_RestoresStateWithinGrace(t *testing.T) {
	f := newFixture(t, testTiming())
	f.start(t)
	before := f.view(t)

	f.s.Send(Detach{Color: rules.Black, ClientID: "conn-b"})
	f.fc.BlockUntil(1)
	f.fc.Advance(30 * time.Second)

	newOut := make(chan protocol.ServerMessage, 64)
	newClient := &Client{ID: "conn-b2", Outbox: newOut}
	reply := make(chan JoinResult, 1)
	require.True(t, f.s.Send(Reconnect{PlayerID: "bob", Client: newClient, Reply: reply}))

	res := <-reply
	require.NoError(t, res.Err)
	assert.Equal(t, rules.Black, res.Color)
	assert.Equal(t, protocol.MsgReconnectionOK, res.Msg.Type)
	assert.Equal(t, before.Board, res.Msg.Board)
	assert.Len(t, res.Msg.BlackHand, game.HandSize)
	assert.Empty(t, res.Msg.WhiteHand)
	waitFor(t, f.wOut, protocol.MsgOpponentReconnected)

	// surviving well past where the old grace deadline would have fired
	f.fc.Advance(40 * time.Second)
	f.eventually(t, func(v View) bool { return v.Connected[rules.Black] }, "reconnect cancels the grace deadline")
}

func TestReconnect_IdempotentForSameConnection(t *testing.T) {
	f := newFixture(t, testTiming())
	f.start(t)

	f.s.Send(Detach{Color: rules.Black, ClientID: "conn-b"})
	waitFor(t, f.wOut, protocol.MsgOpponentDisconnected)

	newOut := make(chan protocol.ServerMessage, 64)
	newClient := &Client{ID: "conn-b2", Outbox: newOut}
	for i := 0; i < 2; i++ {
		reply := make(chan JoinResult, 1)
		require.True(t, f.s.Send(Reconnect{PlayerID: "bob", Client: newClient, Reply: reply}))
		res := <-reply
		require.NoError(t, res.Err)
		assert.Equal(t, rules.Black, res.Color)
	}
	waitFor(t, f.wOut, protocol.MsgOpponentReconnected)
	expectNone(t, f.wOut, protocol.MsgOpponentReconnected)
}

func TestReconnect_OccupiedSlotRejected(t *testing.T) {
	f := newFixture(t, testTiming())
	f.start(t)

	intruder := &Client{ID: "conn-x", Outbox: make(chan protocol.ServerMessage, 8)}
	reply := make(chan JoinResult, 1)
	require.True(t, f.s.Send(Reconnect{PlayerID: "bob", Client: intruder, Reply: reply}))
	res := <-reply
	assert.ErrorIs(t, res.Err, ErrSlotOccupied)

	reply = make(chan JoinResult, 1)
	require.True(t, f.s.Send(Reconnect{PlayerID: "mallory", Client: intruder, Reply: reply}))
	res = <-reply
	assert.ErrorIs(t, res.Err, ErrForbidden)
}

func TestDisconnect_GraceExpiryEvictsSession(t *testing.T) {
	f := newFixture(t, testTiming())
	f.start(t)

	f.s.Send(Detach{Color: rules.Black, ClientID: "conn-b"})
	waitFor(t, f.wOut, protocol.MsgOpponentDisconnected)

	f.fc.BlockUntil(1)
	f.fc.Advance(61 * time.Second)

	over := waitFor(t, f.wOut, protocol.MsgGameOver)
	assert.Equal(t, "opponent_left", over.Reason)
	assert.Equal(t, "white", over.Winner)

	select {
	case id := <-f.reg.evicted:
		assert.Equal(t, "game-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("session was not evicted after the grace window")
	}
	assert.False(t, f.s.Send(Touch{}), "terminated session must refuse messages")
}

func TestWaitingSession_TimesOutWithoutJoiner(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.Black].playerID = ""
	f.s.seats[rules.Black].client = nil
	f.s.phase = PhaseWaiting
	f.start(t)

	f.fc.BlockUntil(1)
	f.fc.Advance(5*time.Minute + time.Second)

	select {
	case id := <-f.reg.evicted:
		assert.Equal(t, "game-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting session was not evicted")
	}
}

func TestJoin_ExactlyOneWinner(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.Black].playerID = ""
	f.s.seats[rules.Black].client = nil
	f.s.phase = PhaseWaiting
	f.start(t)

	reply1 := make(chan JoinResult, 1)
	reply2 := make(chan JoinResult, 1)
	j1 := &Client{ID: "c1", Outbox: make(chan protocol.ServerMessage, 8)}
	j2 := &Client{ID: "c2", Outbox: make(chan protocol.ServerMessage, 8)}
	require.True(t, f.s.Send(Join{PlayerID: "bob", Client: j1, Reply: reply1}))
	require.True(t, f.s.Send(Join{PlayerID: "carol", Client: j2, Reply: reply2}))

	res1, res2 := <-reply1, <-reply2
	require.NoError(t, res1.Err)
	assert.Equal(t, rules.Black, res1.Color)
	assert.Equal(t, protocol.MsgGameJoined, res1.Msg.Type)
	assert.ErrorIs(t, res2.Err, ErrSessionFull)

	joined := waitFor(t, f.wOut, protocol.MsgOpponentJoined)
	assert.Equal(t, "black", joined.OpponentColor)
	v := f.view(t)
	assert.Equal(t, PhaseActive, v.Phase)
}

func TestJoin_SamePlayerRejected(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.Black].playerID = ""
	f.s.seats[rules.Black].client = nil
	f.s.phase = PhaseWaiting
	f.start(t)

	reply := make(chan JoinResult, 1)
	j := &Client{ID: "c1", Outbox: make(chan protocol.ServerMessage, 8)}
	require.True(t, f.s.Send(Join{PlayerID: "alice", Client: j, Reply: reply}))
	res := <-reply
	assert.ErrorIs(t, res.Err, ErrForbidden)
}

func TestRematch_Handshake(t *testing.T) {
	f := newFixture(t, testTiming())
	f.start(t)

	f.s.Send(FromClient{Color: rules.Black, Intent: protocol.ResignIntent{GameID: "game-1"}})
	waitFor(t, f.wOut, protocol.MsgGameOver)

	f.s.Send(FromClient{Color: rules.White, Intent: protocol.RematchOffer{GameID: "game-1"}})
	offer := waitFor(t, f.bOut, protocol.MsgRematchOfferReceived)
	assert.Equal(t, "white", offer.Player)
	select {
	case <-f.reg.rematch:
		t.Fatal("rematch must not start on a single offer")
	case <-time.After(100 * time.Millisecond):
	}

	f.s.Send(FromClient{Color: rules.Black, Intent: protocol.RematchOffer{GameID: "game-1"}})
	select {
	case req := <-f.reg.rematch:
		assert.Equal(t, "game-1", req.OldGameID)
		assert.Equal(t, "alice", req.Players[rules.White].PlayerID)
		assert.Equal(t, "bob", req.Players[rules.Black].PlayerID)
	case <-time.After(2 * time.Second):
		t.Fatal("mutual offers did not request a rematch")
	}
}

func TestRematch_RequiresGameOver(t *testing.T) {
	f := newFixture(t, testTiming())
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: protocol.RematchOffer{GameID: "game-1"}})
	errMsg := waitFor(t, f.wOut, protocol.MsgError)
	assert.Equal(t, "game is not over", errMsg.Message)
}

func TestActionsAfterGameOverRejected(t *testing.T) {
	f := newFixture(t, testTiming())
	f.s.seats[rules.White].hand = cards("ppppp")
	f.start(t)

	f.s.Send(FromClient{Color: rules.White, Intent: protocol.ResignIntent{GameID: "game-1"}})
	waitFor(t, f.wOut, protocol.MsgGameOver)

	f.s.Send(FromClient{Color: rules.White, Intent: moveIntent("e2", "e4", 0, "p")})
	errMsg := waitFor(t, f.wOut, protocol.MsgError)
	assert.Equal(t, "game is not active", errMsg.Message)
}
