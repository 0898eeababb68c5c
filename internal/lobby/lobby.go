package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/pkg/types"
)

// Websocket close codes pushed to clients when the lobby ends a connection.
const (
	CloseIdle    = 4000
	CloseLeft    = 4001
	CloseDeleted = 4101
	CloseKicked  = 4401
	CloseUnknown = 4404
)

type Msg interface{ isLobbyMsg() }

// Attach registers a connection for an existing roster player (reconnect
// semantics: the token must already be in the lobby). Reply carries the
// rejection, if any; on success the connection receives a snapshot at once.
type Attach struct {
	ConnID   string
	PlayerID string
	Outbox   chan Push
	Reply    chan error
}

func (Attach) isLobbyMsg() {}

type Detach struct{ ConnID string }

func (Detach) isLobbyMsg() {}

// FromClient is one game command from a connected player. Reply (optional)
// receives nil or the rejection; rejections never mutate state and never
// broadcast.
type FromClient struct {
	Cmd   engine.Command
	Reply chan error
}

func (FromClient) isLobbyMsg() {}

// JoinPlayer admits a new player through the lobby's own serialization.
type JoinPlayer struct {
	Name  string
	Reply chan JoinResult
}

func (JoinPlayer) isLobbyMsg() {}

type JoinResult struct {
	PlayerID string
	Snapshot *types.Snapshot
	Err      error
}

// ViewFor asks for a masked snapshot as seen by one player.
type ViewFor struct {
	PlayerID string
	Reply    chan *types.Snapshot
}

func (ViewFor) isLobbyMsg() {}

// GetState reflects internal state without data races; test support.
type GetState struct{ Reply chan View }

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type roundTick struct{ gen int }

func (roundTick) isLobbyMsg() {}

type abandonFired struct{ gen int }

func (abandonFired) isLobbyMsg() {}

// Push is one outbound unit for a single connection: either a masked
// snapshot or an instruction to close with the given code.
type Push struct {
	Snapshot  *types.Snapshot
	CloseCode int
	Reason    string
}

// View is a flattened copy of lobby internals for tests.
type View struct {
	Version  int
	NumConns int
	Phase    engine.Phase
	Word     string
	Words    []string
	HostID   string
	WinnerID string
	Players  []string
	Scores   map[string]int
}

type conn struct {
	playerID string
	outbox   chan Push
}

// Lobby is the single point of mutation for one game session. Every command,
// timer fire, and connection change is serialized through its inbox and
// handled by one goroutine.
type Lobby struct {
	inbox chan Msg
	state *engine.State
	deps  engine.Deps

	version int
	conns   map[string]conn
	grace   time.Duration

	tickGen    int
	abandonGen int

	onClose func()
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New starts the lobby goroutine. onClose runs exactly once when the lobby
// shuts down, whatever the cause; the registry uses it to reclaim the code.
func New(parent context.Context, log *zap.Logger, st *engine.State, deps engine.Deps, grace time.Duration, onClose func()) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:   make(chan Msg, 64),
		state:   st,
		deps:    deps,
		conns:   make(map[string]conn),
		grace:   grace,
		onClose: onClose,
		log:     log.With(zap.String("lobby", st.Code)),
		ctx:     ctx,
		cancel:  cancel,
	}

	// A lobby whose host never connects must not leak.
	l.armAbandon()

	go l.loop()
	return l
}

// Expose the inbox so transports and tests can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Attach:
				l.handleAttach(msg)

			case Detach:
				l.handleDetach(msg)

			case JoinPlayer:
				l.handleJoin(msg)

			case FromClient:
				if l.handleCommand(msg.Cmd, msg.Reply) {
					return
				}

			case ViewFor:
				msg.Reply <- l.snapshotFor(msg.PlayerID)

			case GetState:
				msg.Reply <- l.view()

			case roundTick:
				l.handleTick(msg.gen)

			case abandonFired:
				if msg.gen == l.abandonGen && len(l.conns) == 0 {
					l.log.Info("lobby abandoned, reclaiming")
					l.shutdown()
					return
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// handleCommand applies one game command. Returns true when the lobby shut
// down as a result and the loop must exit.
func (l *Lobby) handleCommand(cmd engine.Command, reply chan error) bool {
	events, err := engine.Apply(l.state, l.deps, cmd)
	if err != nil {
		l.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)), zap.Error(err))
		if reply != nil {
			reply <- err
		}
		return false
	}
	if reply != nil {
		reply <- nil
	}
	if len(events) == 0 {
		return false
	}

	l.version++

	deleted := false
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtGameStarted, engine.EvtRestarted:
			l.armRoundTimer()
		case engine.EvtRoundEnded:
			l.stopRoundTimer()
		case engine.EvtPlayerKicked:
			l.closePlayerConns(ev.PlayerID, CloseKicked, "kicked")
		case engine.EvtPlayerLeft:
			l.closePlayerConns(ev.PlayerID, CloseLeft, "left")
		case engine.EvtLobbyDeleted:
			deleted = true
		}
	}

	if deleted {
		l.closeAll(CloseDeleted, "lobby deleted")
		l.shutdown()
		return true
	}

	l.broadcast()
	return false
}

func (l *Lobby) handleAttach(msg Attach) {
	_, err := engine.Apply(l.state, l.deps,
		engine.Command{Type: engine.CmdReconnect, PlayerID: msg.PlayerID})
	if err != nil {
		msg.Reply <- err
		return
	}

	l.conns[msg.ConnID] = conn{playerID: msg.PlayerID, outbox: msg.Outbox}
	l.abandonGen++ // cancel any pending abandon check
	msg.Reply <- nil

	l.version++
	l.broadcast()
}

func (l *Lobby) handleDetach(msg Detach) {
	c, ok := l.conns[msg.ConnID]
	if !ok {
		return
	}
	delete(l.conns, msg.ConnID)
	close(c.outbox)

	// Only explicit leave/kick removes a player; a dropped socket just
	// clears liveness.
	if !l.playerHasConn(c.playerID) {
		if _, err := engine.Apply(l.state, l.deps,
			engine.Command{Type: engine.CmdDisconnect, PlayerID: c.playerID}); err == nil {
			l.version++
			l.broadcast()
		}
	}

	if len(l.conns) == 0 {
		l.armAbandon()
	}
}

func (l *Lobby) handleJoin(msg JoinPlayer) {
	events, err := engine.Apply(l.state, l.deps,
		engine.Command{Type: engine.CmdJoin, Name: msg.Name})
	if err != nil {
		msg.Reply <- JoinResult{Err: err}
		return
	}

	var playerID string
	for _, ev := range events {
		if ev.Type == engine.EvtPlayerJoined {
			playerID = ev.PlayerID
		}
	}

	l.version++
	l.broadcast()
	msg.Reply <- JoinResult{PlayerID: playerID, Snapshot: l.snapshotFor(playerID)}
}

func (l *Lobby) handleTick(gen int) {
	if gen != l.tickGen {
		return // stale fire from a cancelled or restarted round
	}
	if !l.state.Config.Timed || l.state.Phase != engine.PhaseActive {
		return
	}

	if l.state.RemainingSeconds(l.deps.Now()) <= 0 {
		events, err := engine.Apply(l.state, l.deps,
			engine.Command{Type: engine.CmdTimerExpired})
		if err == nil && len(events) > 0 {
			l.log.Info("round expired", zap.Int("words", len(l.state.Words)))
			l.version++
			l.broadcast()
		}
		l.tickGen++
		return
	}

	// Countdown heartbeat: clients see the clock move every second.
	l.version++
	l.broadcast()
	l.scheduleTick(gen)
}

func (l *Lobby) armRoundTimer() {
	if !l.state.Config.Timed {
		return
	}
	l.tickGen++
	l.scheduleTick(l.tickGen)
}

func (l *Lobby) stopRoundTimer() {
	l.tickGen++
}

func (l *Lobby) scheduleTick(gen int) {
	time.AfterFunc(time.Second, func() {
		select {
		case l.inbox <- roundTick{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) armAbandon() {
	l.abandonGen++
	gen := l.abandonGen
	time.AfterFunc(l.grace, func() {
		select {
		case l.inbox <- abandonFired{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) playerHasConn(playerID string) bool {
	for _, c := range l.conns {
		if c.playerID == playerID {
			return true
		}
	}
	return false
}

func (l *Lobby) broadcast() {
	dropped := false
	for id, c := range l.conns {
		select {
		case c.outbox <- Push{Snapshot: l.snapshotFor(c.playerID)}:
			// ok
		default:
			// Client is slow/full - drop them.
			close(c.outbox)
			delete(l.conns, id)
			dropped = true
			if !l.playerHasConn(c.playerID) {
				_, _ = engine.Apply(l.state, l.deps,
					engine.Command{Type: engine.CmdDisconnect, PlayerID: c.playerID})
			}
		}
	}
	// The ws handler's Detach for a dropped conn no-ops, so re-arm here.
	if dropped && len(l.conns) == 0 {
		l.armAbandon()
	}
}

func (l *Lobby) closePlayerConns(playerID string, code int, reason string) {
	removed := false
	for id, c := range l.conns {
		if c.playerID != playerID {
			continue
		}
		select {
		case c.outbox <- Push{CloseCode: code, Reason: reason}:
		default:
		}
		close(c.outbox)
		delete(l.conns, id)
		removed = true
	}
	if removed && len(l.conns) == 0 {
		l.armAbandon()
	}
}

func (l *Lobby) closeAll(code int, reason string) {
	for id, c := range l.conns {
		select {
		case c.outbox <- Push{CloseCode: code, Reason: reason}:
		default:
		}
		close(c.outbox)
		delete(l.conns, id)
	}
}

func (l *Lobby) shutdown() {
	for id, c := range l.conns {
		close(c.outbox)
		delete(l.conns, id)
	}
	l.cancel()
	if l.onClose != nil {
		l.onClose()
		l.onClose = nil
	}
}

func (l *Lobby) view() View {
	v := View{
		Version:  l.version,
		NumConns: len(l.conns),
		Phase:    l.state.Phase,
		Word:     l.state.Word,
		Words:    append([]string(nil), l.state.Words...),
		HostID:   l.state.HostID,
		WinnerID: l.state.WinnerID,
		Scores:   make(map[string]int, len(l.state.Scores)),
	}
	for _, p := range l.state.Players {
		v.Players = append(v.Players, p.ID)
	}
	for id, n := range l.state.Scores {
		v.Scores[id] = n
	}
	return v
}
