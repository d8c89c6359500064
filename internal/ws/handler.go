// Package ws is the transport edge: one handler per websocket connection,
// decoding inbound records into intents and shuttling them to the registry
// or the bound session actor.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/metachess-backend/internal/protocol"
	"github.com/DoyleJ11/metachess-backend/internal/registry"
	"github.com/DoyleJ11/metachess-backend/internal/rules"
	"github.com/DoyleJ11/metachess-backend/internal/session"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 3 * time.Second
	replyTimeout = 5 * time.Second
)

func Handler(reg *registry.Registry, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan protocol.ServerMessage, 16)
		state := &connState{}
		clientID := uuid.NewString()
		cl := &session.Client{
			ID:     clientID,
			Outbox: out,
			Rebind: func(gameID string, color rules.Color, sess *session.Session) {
				state.set(binding{gameID: gameID, color: color, sess: sess})
			},
		}
		log = log.With("client_id", clientID)

		// Writer goroutine: the only producer of outbound frames.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case msg := <-out:
					payload, err := json.Marshal(msg)
					if err != nil {
						log.Errorw("marshal outbound", "err", err)
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
						// transport failure: logged, never surfaced to the peer
						log.Debugw("write failed", "err", err)
					}
					cancel()
				}
			}
		}()

		send := func(msg protocol.ServerMessage) {
			select {
			case out <- msg:
			case <-writeCtx.Done():
			}
		}

		defer func() {
			if b := state.get(); b.sess != nil {
				b.sess.Send(session.Detach{Color: b.color, ClientID: clientID})
			}
		}()

		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				send(protocol.Error("invalid message format"))
				continue
			}
			intent, err := protocol.ParseIntent(cm)
			if err != nil {
				log.Debugw("rejected message", "type", cm.Type, "err", err)
				send(protocol.Error("invalid message"))
				continue
			}
			dispatch(reg, state, cl, send, intent)
		}
	}
}

func dispatch(reg *registry.Registry, state *connState, cl *session.Client,
	send func(protocol.ServerMessage), intent protocol.Intent) {

	switch it := intent.(type) {
	case protocol.CreateGame:
		detachCurrent(state, cl)
		reply := make(chan registry.CreateResult, 1)
		reg.Inbox() <- registry.Create{PlayerID: it.PlayerID, Client: cl, Reply: reply}
		res := <-reply
		state.set(binding{gameID: res.GameID, color: res.Color, sess: res.Sess})
		send(res.Msg)

	case protocol.JoinGame:
		detachCurrent(state, cl)
		reply := make(chan session.JoinResult, 1)
		reg.Inbox() <- registry.Join{GameID: it.GameID, PlayerID: it.PlayerID, Client: cl, Reply: reply}
		finishSeat(state, send, reply, it.GameID)

	case protocol.Reconnect:
		// rebinding to the same game must not surface a disconnect to the peer
		if b := state.get(); b.sess == nil || b.gameID != it.GameID {
			detachCurrent(state, cl)
		}
		reply := make(chan session.JoinResult, 1)
		reg.Inbox() <- registry.Reconnect{GameID: it.GameID, PlayerID: it.PlayerID, Client: cl, Reply: reply}
		finishSeat(state, send, reply, it.GameID)

	case protocol.Heartbeat:
		send(protocol.ServerMessage{Type: protocol.MsgHeartbeatAck, GameID: it.GameID})
		if b := state.get(); b.sess != nil {
			b.sess.Send(session.Touch{})
		}

	case protocol.CheckGame:
		reply := make(chan bool, 1)
		reg.Inbox() <- registry.CheckGame{GameID: it.GameID, Reply: reply}
		send(protocol.ServerMessage{
			Type:   protocol.MsgCheckGameResponse,
			GameID: it.GameID,
			Exists: protocol.Bool(<-reply),
		})

	default:
		forwardToSession(state, send, intent)
	}
}

// forwardToSession routes in-game intents through the connection's binding.
func forwardToSession(state *connState, send func(protocol.ServerMessage), intent protocol.Intent) {
	gameID, player := intentTarget(intent)
	b := state.get()
	_, isRematch := intent.(protocol.RematchOffer)

	fail := func(msg string) {
		if isRematch {
			// an offer against a vanished game fails explicitly
			send(protocol.ServerMessage{Type: protocol.MsgRematchFailed, GameID: gameID, Message: msg})
			return
		}
		send(protocol.Error(msg))
	}

	if b.sess == nil || b.gameID != gameID {
		fail("game not found")
		return
	}
	if player != "" {
		pc, ok := rules.ParseColor(player)
		if !ok || pc != b.color {
			fail("player does not match your seat")
			return
		}
	}
	if !b.sess.Send(session.FromClient{Color: b.color, Intent: intent}) {
		fail("game no longer exists")
	}
}

func intentTarget(intent protocol.Intent) (gameID, player string) {
	switch it := intent.(type) {
	case protocol.MoveIntent:
		return it.GameID, it.Player
	case protocol.PassIntent:
		return it.GameID, it.Player
	case protocol.CheckValidMoves:
		return it.GameID, it.Player
	case protocol.ResignIntent:
		return it.GameID, it.Player
	case protocol.RematchOffer:
		return it.GameID, it.Player
	default:
		return "", ""
	}
}

// finishSeat waits for the session's verdict on a join or reconnect. The
// timeout covers the narrow race where a session terminates after accepting
// the message but before replying.
func finishSeat(state *connState, send func(protocol.ServerMessage),
	reply chan session.JoinResult, gameID string) {

	var res session.JoinResult
	select {
	case res = <-reply:
	case <-time.After(replyTimeout):
		res = session.JoinResult{Err: session.ErrNotFound}
	}
	if res.Err != nil {
		send(protocol.Error(seatError(res.Err)))
		return
	}
	state.set(binding{gameID: gameID, color: res.Color, sess: res.Sess})
	send(res.Msg)
}

func seatError(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionFull):
		return "game is full"
	case errors.Is(err, session.ErrSlotOccupied):
		return "seat is already connected"
	case errors.Is(err, session.ErrForbidden):
		return "not a player in this game"
	default:
		return "game not found"
	}
}

func detachCurrent(state *connState, cl *session.Client) {
	if b := state.get(); b.sess != nil {
		b.sess.Send(session.Detach{Color: b.color, ClientID: cl.ID})
		state.clear()
	}
}
