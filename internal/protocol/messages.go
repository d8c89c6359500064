// Package protocol defines the JSON wire format shared with the client:
// tagged records in both directions, plus the decoded intent union the
// rest of the server works with.
package protocol

// ClientMessage is the raw inbound record; Type selects which fields apply.
type ClientMessage struct {
	Type     string       `json:"type"`
	GameID   string       `json:"gameId,omitempty"`
	PlayerID string       `json:"playerId,omitempty"`
	Player   string       `json:"player,omitempty"`
	Move     *MovePayload `json:"move,omitempty"`
}

type MovePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	PieceType string `json:"pieceType"`
	HandIndex int    `json:"handIndex"`
}

// ClockInfo carries both remaining times in seconds.
type ClockInfo struct {
	White float64 `json:"white"`
	Black float64 `json:"black"`
}

// ServerMessage is the outbound record. Hands are only ever populated for
// the receiving side's own color; decks travel as counts.
type ServerMessage struct {
	Type          string       `json:"type"`
	GameID        string       `json:"gameId,omitempty"`
	PlayerColor   string       `json:"playerColor,omitempty"`
	OpponentColor string       `json:"opponentColor,omitempty"`
	CreatorColor  string       `json:"creatorColor,omitempty"`
	Board         string       `json:"board,omitempty"`
	WhiteDeck     *int         `json:"whiteDeck,omitempty"`
	BlackDeck     *int         `json:"blackDeck,omitempty"`
	WhiteHand     []string     `json:"whiteHand,omitempty"`
	BlackHand     []string     `json:"blackHand,omitempty"`
	CurrentTurn   string       `json:"currentTurn,omitempty"`
	Phase         string       `json:"phase,omitempty"`
	Clock         *ClockInfo   `json:"timeControl,omitempty"`
	Move          *MovePayload `json:"move,omitempty"`
	PassingPlayer string       `json:"passingPlayer,omitempty"`
	IsCheck       bool         `json:"isCheck,omitempty"`
	Player        string       `json:"player,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Winner        string       `json:"winner,omitempty"`
	Loser         string       `json:"loser,omitempty"`
	NewGameID     string       `json:"newGameId,omitempty"`
	Exists        *bool        `json:"exists,omitempty"`
	Message       string       `json:"message,omitempty"`
}

// Outbound message types.
const (
	MsgGameCreated          = "game_created"
	MsgGameJoined           = "game_joined"
	MsgOpponentJoined       = "opponent_joined"
	MsgOpponentMove         = "opponent_move"
	MsgHandUpdate           = "hand_update"
	MsgPassUpdate           = "pass_update"
	MsgRedrawUpdate         = "redraw_update"
	MsgTimeUpdate           = "time_update"
	MsgTimeOut              = "time_out"
	MsgGameOver             = "game_over"
	MsgReconnectionOK       = "reconnection_successful"
	MsgOpponentReconnected  = "opponent_reconnected"
	MsgOpponentDisconnected = "opponent_disconnected"
	MsgRematchOfferReceived = "rematch_offer_received"
	MsgRematchStart         = "rematch_start"
	MsgRematchFailed        = "rematch_failed"
	MsgHeartbeatAck         = "heartbeat_ack"
	MsgCheckGameResponse    = "check_game_response"
	MsgError                = "error"
)

func Int(n int) *int    { return &n }
func Bool(v bool) *bool { return &v }

func Error(msg string) ServerMessage {
	return ServerMessage{Type: MsgError, Message: msg}
}
