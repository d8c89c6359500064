// Package registry owns every live session: an actor holding the id table,
// creating sessions, forwarding joins and reconnects, and building rematch
// successors. In-session mutation never happens here; the registry only
// inserts, looks up, and removes.
package registry

import (
	"context"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/metachess-backend/internal/protocol"
	"github.com/DoyleJ11/metachess-backend/internal/rules"
	"github.com/DoyleJ11/metachess-backend/internal/session"
)

type Msg interface{ isRegistryMsg() }

// Create opens a Waiting session with the caller seated on a random color.
type Create struct {
	PlayerID string
	Client   *session.Client
	Reply    chan CreateResult
}

type CreateResult struct {
	GameID string
	Color  rules.Color
	Sess   *session.Session
	Msg    protocol.ServerMessage
}

// Join forwards to the session actor, which serializes competing joiners.
type Join struct {
	GameID   string
	PlayerID string
	Client   *session.Client
	Reply    chan session.JoinResult
}

type Reconnect struct {
	GameID   string
	PlayerID string
	Client   *session.Client
	Reply    chan session.JoinResult
}

type CheckGame struct {
	GameID string
	Reply  chan bool
}

type Remove struct{ GameID string }

type StartRematch struct{ Req session.RematchRequest }

type Shutdown struct{}

func (Create) isRegistryMsg()       {}
func (Join) isRegistryMsg()         {}
func (Reconnect) isRegistryMsg()    {}
func (CheckGame) isRegistryMsg()    {}
func (Remove) isRegistryMsg()       {}
func (StartRematch) isRegistryMsg() {}
func (Shutdown) isRegistryMsg()     {}

type Registry struct {
	inbox    chan Msg
	sessions map[string]*session.Session

	timing session.Timing
	oracle rules.Oracle
	clk    clockwork.Clock
	log    *zap.SugaredLogger
	rng    *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, timing session.Timing, oracle rules.Oracle,
	clk clockwork.Clock, log *zap.SugaredLogger, rng *rand.Rand) *Registry {

	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:    make(chan Msg, 64),
		sessions: make(map[string]*session.Session),
		timing:   timing,
		oracle:   oracle,
		clk:      clk,
		log:      log,
		rng:      rng,
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

// Evict implements session.Registry; called by a session that terminated.
func (r *Registry) Evict(id string) { r.enqueue(Remove{GameID: id}) }

// Rematch implements session.Registry.
func (r *Registry) Rematch(req session.RematchRequest) { r.enqueue(StartRematch{Req: req}) }

// enqueue never blocks the calling session actor.
func (r *Registry) enqueue(m Msg) {
	select {
	case r.inbox <- m:
	default:
		go func() { r.inbox <- m }()
	}
}

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Create:
				msg.Reply <- r.create(msg)

			case Join:
				sess := r.sessions[msg.GameID]
				if sess == nil || !sess.Send(session.Join{
					PlayerID: msg.PlayerID, Client: msg.Client, Reply: msg.Reply,
				}) {
					msg.Reply <- session.JoinResult{Err: session.ErrNotFound}
				}

			case Reconnect:
				sess := r.sessions[msg.GameID]
				if sess == nil || !sess.Send(session.Reconnect{
					PlayerID: msg.PlayerID, Client: msg.Client, Reply: msg.Reply,
				}) {
					msg.Reply <- session.JoinResult{Err: session.ErrNotFound}
				}

			case CheckGame:
				_, ok := r.sessions[msg.GameID]
				msg.Reply <- ok

			case Remove:
				delete(r.sessions, msg.GameID)

			case StartRematch:
				r.startRematch(msg.Req)

			case Shutdown:
				for _, sess := range r.sessions {
					sess.Send(session.Shutdown{})
				}
				clear(r.sessions)
				r.cancel()
			}
		}
	}
}

func (r *Registry) create(msg Create) CreateResult {
	id := uuid.NewString()
	color := rules.White
	if r.rng.Intn(2) == 1 {
		color = rules.Black
	}
	sess := session.New(id, r.timing, r.oracle, r.clk, r, r.log, r.rng)
	sess.BindSeat(color, msg.PlayerID, msg.Client)
	reply := sess.SnapshotFor(color, protocol.MsgGameCreated)
	sess.Start()
	r.sessions[id] = sess
	r.log.Infow("game created", "session_id", id, "creator_color", color)
	return CreateResult{GameID: id, Color: color, Sess: sess, Msg: reply}
}

// startRematch builds the successor session with sides swapped relative to
// the finished match, rebinds both connections, and retires the old id.
func (r *Registry) startRematch(req session.RematchRequest) {
	id := uuid.NewString()
	sess := session.New(id, r.timing, r.oracle, r.clk, r, r.log, r.rng)
	for oldColor, p := range req.Players {
		sess.BindSeat(oldColor.Other(), p.PlayerID, p.Client)
	}
	for oldColor, p := range req.Players {
		if p.Client == nil {
			continue
		}
		newColor := oldColor.Other()
		reply := sess.SnapshotFor(newColor, protocol.MsgRematchStart)
		reply.NewGameID = id
		if p.Client.Rebind != nil {
			p.Client.Rebind(id, newColor, sess)
		}
		select {
		case p.Client.Outbox <- reply:
		default:
			r.log.Warnw("dropping rematch_start for slow client", "session_id", id)
		}
	}
	sess.Start()
	r.sessions[id] = sess
	r.log.Infow("rematch started", "old_session_id", req.OldGameID, "session_id", id)

	if old := r.sessions[req.OldGameID]; old != nil {
		old.Send(session.Shutdown{})
		delete(r.sessions, req.OldGameID)
	}
}
