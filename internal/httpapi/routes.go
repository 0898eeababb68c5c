package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/internal/hub"
	"github.com/wordduel/wordduel-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, src engine.WordSource, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Post("/lobbies", CreateLobby(h))
		r.Get("/lobbies/{code}", LobbyState(h))
		r.Post("/lobbies/{code}/join", JoinLobby(h))
		r.Get("/lengths", Lengths(src))
		r.Get("/healthz", Healthz)
	})

	// Long-lived; must not sit under the request timeout.
	r.Get("/ws", ws.Handler(h, log))

	return r
}
