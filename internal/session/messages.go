package session

import (
	"time"

	"github.com/DoyleJ11/metachess-backend/internal/game"
	"github.com/DoyleJ11/metachess-backend/internal/protocol"
	"github.com/DoyleJ11/metachess-backend/internal/rules"
)

// Client is a session's handle on one live connection: an id, an outbox the
// session writes tailored messages to, and a rebind hook the registry uses
// to redirect the connection to a successor session on rematch. The outbox
// is owned by the connection and outlives the session.
type Client struct {
	ID     string
	Outbox chan protocol.ServerMessage
	Rebind func(gameID string, color rules.Color, sess *Session)
}

// Msg is the sealed union of everything that may enter a session's inbox.
// The actor loop applies them in arrival order; nothing else mutates state.
type Msg interface{ isSessionMsg() }

// Join asks for the open seat of a Waiting session.
type Join struct {
	PlayerID string
	Client   *Client
	Reply    chan JoinResult
}

// Reconnect rebinds a returning player to their vacated seat.
type Reconnect struct {
	PlayerID string
	Client   *Client
	Reply    chan JoinResult
}

// Detach records that a side's connection dropped. ClientID guards against
// a stale disconnect racing a completed reconnect.
type Detach struct {
	Color    rules.Color
	ClientID string
}

// FromClient carries a validated intent from the side's connection.
type FromClient struct {
	Color  rules.Color
	Intent protocol.Intent
}

// Touch refreshes the activity timestamp (heartbeats).
type Touch struct{}

// GetState reflects internal state without data races; test use only.
type GetState struct {
	Reply chan View
}

type Shutdown struct{}

func (Join) isSessionMsg()       {}
func (Reconnect) isSessionMsg()  {}
func (Detach) isSessionMsg()     {}
func (FromClient) isSessionMsg() {}
func (Touch) isSessionMsg()      {}
func (GetState) isSessionMsg()   {}
func (Shutdown) isSessionMsg()   {}

type JoinResult struct {
	Color rules.Color
	Sess  *Session
	Msg   protocol.ServerMessage
	Err   error
}

// View is a race-free copy of session state for tests.
type View struct {
	ID            string
	Phase         Phase
	Turn          rules.Color
	Board         string
	Remaining     map[rules.Color]time.Duration
	ClockStarted  bool
	Hands         map[rules.Color][]game.Card
	DeckCounts    map[rules.Color]int
	Connected     map[rules.Color]bool
	PlayerIDs     map[rules.Color]string
	RematchOffers map[rules.Color]bool
	EndReason     string
	Winner        rules.Color
}
