package protocol

import "errors"

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing required field")
)

// Intent is the closed union of inbound requests. The string tag is decoded
// exactly once, at the transport boundary; everything past it switches on
// these types exhaustively.
type Intent interface{ isIntent() }

type CreateGame struct {
	PlayerID string
}

type JoinGame struct {
	GameID   string
	PlayerID string
}

type Reconnect struct {
	GameID   string
	PlayerID string
}

type MoveIntent struct {
	GameID string
	Player string
	Move   MovePayload
}

type PassIntent struct {
	GameID string
	Player string
}

type CheckValidMoves struct {
	GameID string
	Player string
}

type ResignIntent struct {
	GameID string
	Player string
}

type RematchOffer struct {
	GameID string
	Player string
}

type Heartbeat struct {
	GameID string
}

type CheckGame struct {
	GameID string
}

func (CreateGame) isIntent()      {}
func (JoinGame) isIntent()        {}
func (Reconnect) isIntent()       {}
func (MoveIntent) isIntent()      {}
func (PassIntent) isIntent()      {}
func (CheckValidMoves) isIntent() {}
func (ResignIntent) isIntent()    {}
func (RematchOffer) isIntent()    {}
func (Heartbeat) isIntent()       {}
func (CheckGame) isIntent()       {}

// ParseIntent validates a raw record and lifts it into the intent union.
func ParseIntent(m ClientMessage) (Intent, error) {
	need := func(fields ...string) error {
		for _, f := range fields {
			switch f {
			case "gameId":
				if m.GameID == "" {
					return ErrMissingField
				}
			case "playerId":
				if m.PlayerID == "" {
					return ErrMissingField
				}
			case "player":
				if m.Player == "" {
					return ErrMissingField
				}
			case "move":
				if m.Move == nil {
					return ErrMissingField
				}
			}
		}
		return nil
	}

	switch m.Type {
	case "create_game":
		if err := need("playerId"); err != nil {
			return nil, err
		}
		return CreateGame{PlayerID: m.PlayerID}, nil
	case "join_game":
		if err := need("gameId", "playerId"); err != nil {
			return nil, err
		}
		return JoinGame{GameID: m.GameID, PlayerID: m.PlayerID}, nil
	case "reconnect":
		if err := need("gameId", "playerId"); err != nil {
			return nil, err
		}
		return Reconnect{GameID: m.GameID, PlayerID: m.PlayerID}, nil
	case "move":
		if err := need("gameId", "player", "move"); err != nil {
			return nil, err
		}
		return MoveIntent{GameID: m.GameID, Player: m.Player, Move: *m.Move}, nil
	case "pass":
		if err := need("gameId", "player"); err != nil {
			return nil, err
		}
		return PassIntent{GameID: m.GameID, Player: m.Player}, nil
	case "check_valid_moves":
		if err := need("gameId", "player"); err != nil {
			return nil, err
		}
		return CheckValidMoves{GameID: m.GameID, Player: m.Player}, nil
	case "resign":
		if err := need("gameId", "player"); err != nil {
			return nil, err
		}
		return ResignIntent{GameID: m.GameID, Player: m.Player}, nil
	case "rematch_offer":
		if err := need("gameId", "player"); err != nil {
			return nil, err
		}
		return RematchOffer{GameID: m.GameID, Player: m.Player}, nil
	case "heartbeat":
		return Heartbeat{GameID: m.GameID}, nil
	case "check_game":
		if err := need("gameId"); err != nil {
			return nil, err
		}
		return CheckGame{GameID: m.GameID}, nil
	default:
		return nil, ErrUnknownType
	}
}
