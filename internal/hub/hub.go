package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/internal/lobby"
)

var ErrLobbyNotFound = errors.New("lobby not found")

const codeLen = 5

type HubMsg interface{ isHubMsg() }

// CreateLobby allocates a code, builds the initial state, and starts the
// lobby goroutine. The host becomes the sole player.
type CreateLobby struct {
	HostName string
	Config   engine.Config
	Reply    chan CreateResult
}

type CreateResult struct {
	Lobby  *lobby.Lobby
	Code   string
	HostID string
	Err    error
}

// GetLobby resolves a code; the reply is nil for unknown codes. Lookups are
// case-insensitive.
type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby reclaims a code. Sent by lobbies themselves on delete/abandon.
type RemoveLobby struct{ Code string }

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Hub is the session registry: one actor owning the code->lobby map, so code
// generation, routing, and reclamation never race each other.
type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	deps    engine.Deps
	grace   time.Duration
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger, deps engine.Deps, grace time.Duration) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		deps:    deps,
		grace:   grace,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg)

			case GetLobby:
				msg.Reply <- h.lobbies[normalizeCode(msg.Code)]

			case RemoveLobby:
				code := normalizeCode(msg.Code)
				if _, ok := h.lobbies[code]; ok {
					delete(h.lobbies, code)
					h.log.Info("lobby removed", zap.String("code", code))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateLobby) CreateResult {
	code, err := h.freshCode()
	if err != nil {
		return CreateResult{Err: err}
	}

	st, err := engine.NewState(code, h.deps, msg.Config, msg.HostName)
	if err != nil {
		return CreateResult{Err: err}
	}

	lb := lobby.New(h.ctx, h.log, st, h.deps, h.grace, func() {
		select {
		case h.inbox <- RemoveLobby{Code: code}:
		case <-h.ctx.Done():
		}
	})
	h.lobbies[code] = lb
	h.log.Info("lobby created", zap.String("code", code))

	return CreateResult{Lobby: lb, Code: code, HostID: st.HostID}
}

// freshCode draws codes until one misses the live set. Codes are stored
// uppercase; collision checks are therefore case-insensitive.
func (h *Hub) freshCode() (string, error) {
	for {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.lobbies[code]; !taken {
			return code, nil
		}
	}
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLen)
	for i := 0; i < codeLen; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Inbox() <- lobby.Shutdown{}
	}
	clear(h.lobbies)
	h.cancel()
}
