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

	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/internal/hub"
	"github.com/wordduel/wordduel-backend/internal/lobby"
	"github.com/wordduel/wordduel-backend/internal/types"
)

const writeTimeout = 3 * time.Second

// Clients may sit idle watching the board; keep reads generous. Var so tests
// can shrink it.
var readTimeout = 120 * time.Second

// Handler upgrades a connection and binds it to one player in one lobby.
// The player token must already be on the roster (issued by create/join);
// attaching is reconnect-idempotent and never alters game state.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		playerID := r.URL.Query().Get("player_id")
		if code == "" || playerID == "" {
			http.Error(w, "missing code or player_id", http.StatusBadRequest)
			return
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan lobby.Push, 8)
		connID := uuid.NewString()

		attached := make(chan error, 1)
		lb.Inbox() <- lobby.Attach{ConnID: connID, PlayerID: playerID, Outbox: out, Reply: attached}
		if err := <-attached; err != nil {
			conn.Close(websocket.StatusCode(lobby.CloseUnknown), "unknown player")
			return
		}
		defer func() { lb.Inbox() <- lobby.Detach{ConnID: connID} }()

		log.Debug("ws attached",
			zap.String("lobby", code), zap.String("player", playerID))

		// Writer goroutine: snapshots and server-initiated closes.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for push := range out {
				if push.CloseCode != 0 {
					conn.Close(websocket.StatusCode(push.CloseCode), push.Reason)
					return
				}
				msg := types.ServerMessage{Type: "StateSnapshot", State: push.Snapshot}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop.
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					conn.Close(websocket.StatusCode(lobby.CloseIdle), "idle timeout")
					return
				}
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Abrupt drop: Detach in the defer marks liveness false.
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad_json", "malformed message")
				continue
			}

			cmd, ok := toCommand(cm, playerID)
			if !ok {
				writeError(r.Context(), conn, "unknown_type", "unknown message type")
				continue
			}

			result := make(chan error, 1)
			lb.Inbox() <- lobby.FromClient{Cmd: cmd, Reply: result}
			if err := <-result; err != nil {
				writeError(r.Context(), conn, types.ErrorCode(err), err.Error())
			}
			if cmd.Type == engine.CmdLeave || cmd.Type == engine.CmdDelete {
				return
			}
		}
	}
}

func toCommand(m types.ClientMessage, playerID string) (engine.Command, bool) {
	switch m.Type {
	case "Start":
		return engine.Command{Type: engine.CmdStart, PlayerID: playerID}, true
	case "Guess":
		return engine.Command{Type: engine.CmdGuess, PlayerID: playerID, Word: m.Word}, true
	case "Restart":
		return engine.Command{Type: engine.CmdRestart, PlayerID: playerID}, true
	case "Kick":
		return engine.Command{Type: engine.CmdKick, PlayerID: playerID, TargetID: m.TargetID}, true
	case "TeamChange":
		return engine.Command{
			Type:     engine.CmdTeamChange,
			PlayerID: playerID,
			TargetID: m.TargetID,
			Team:     engine.Team(m.Team),
		}, true
	case "Leave":
		return engine.Command{Type: engine.CmdLeave, PlayerID: playerID}, true
	case "Delete":
		return engine.Command{Type: engine.CmdDelete, PlayerID: playerID}, true
	default:
		return engine.Command{}, false
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, code, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Code: code, Error: msg})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
