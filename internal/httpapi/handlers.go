package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/internal/hub"
	"github.com/wordduel/wordduel-backend/internal/lobby"
	"github.com/wordduel/wordduel-backend/internal/types"
	pub "github.com/wordduel/wordduel-backend/pkg/types"
)

type createLobbyRequest struct {
	PlayerName           string `json:"player_name"`
	WordLength           int    `json:"word_length"`
	AttemptsLimit        int    `json:"attempts_limit"`
	Timed                bool   `json:"timed"`
	RoundSeconds         int    `json:"round_seconds"`
	TeamMode             bool   `json:"team_mode"`
	ResetScoresOnRestart bool   `json:"reset_scores_on_restart"`
	HostLeavePolicy      string `json:"host_leave_policy"`
}

type joinLobbyRequest struct {
	PlayerName string `json:"player_name"`
}

type lobbyResponse struct {
	Code     string        `json:"code"`
	PlayerID string        `json:"playerId"`
	Lobby    *pub.Snapshot `json:"lobby"`
}

// CreateLobby handles POST /lobbies: allocates a code and returns the host's
// player token plus their initial view.
func CreateLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
			return
		}

		cfg := engine.Config{
			WordLength:           req.WordLength,
			AttemptsLimit:        req.AttemptsLimit,
			Timed:                req.Timed,
			RoundSeconds:         req.RoundSeconds,
			TeamMode:             req.TeamMode,
			ResetScoresOnRestart: req.ResetScoresOnRestart,
			HostLeavePolicy:      engine.HostLeavePolicy(req.HostLeavePolicy),
		}

		reply := make(chan hub.CreateResult, 1)
		h.Inbox() <- hub.CreateLobby{HostName: req.PlayerName, Config: cfg, Reply: reply}
		res := <-reply
		if res.Err != nil {
			writeError(w, http.StatusBadRequest, types.ErrorCode(res.Err), res.Err.Error())
			return
		}

		view := make(chan *pub.Snapshot, 1)
		res.Lobby.Inbox() <- lobby.ViewFor{PlayerID: res.HostID, Reply: view}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(lobbyResponse{
			Code:     res.Code,
			PlayerID: res.HostID,
			Lobby:    <-view,
		})
	}
}

// JoinLobby handles POST /lobbies/{code}/join.
func JoinLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		var req joinLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
			return
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			writeError(w, http.StatusNotFound, "lobby_not_found", hub.ErrLobbyNotFound.Error())
			return
		}

		joined := make(chan lobby.JoinResult, 1)
		lb.Inbox() <- lobby.JoinPlayer{Name: req.PlayerName, Reply: joined}
		res := <-joined
		if res.Err != nil {
			status := http.StatusBadRequest
			if errors.Is(res.Err, engine.ErrLobbyFull) || errors.Is(res.Err, engine.ErrAlreadyStarted) {
				status = http.StatusConflict
			}
			writeError(w, status, types.ErrorCode(res.Err), res.Err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(lobbyResponse{
			Code:     res.Snapshot.Code,
			PlayerID: res.PlayerID,
			Lobby:    res.Snapshot,
		})
	}
}

// LobbyState handles GET /lobbies/{code}: a one-shot masked read for pages
// that render before the socket attaches. An optional player_id query selects
// the viewer; without it the caller sees the outsider view (counts only).
func LobbyState(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			writeError(w, http.StatusNotFound, "lobby_not_found", hub.ErrLobbyNotFound.Error())
			return
		}

		view := make(chan *pub.Snapshot, 1)
		lb.Inbox() <- lobby.ViewFor{PlayerID: r.URL.Query().Get("player_id"), Reply: view}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(<-view)
	}
}

// Lengths advertises the word lengths the dictionary can serve.
func Lengths(src engine.WordSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Lengths []int `json:"lengths"`
		}{Lengths: src.Lengths()})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}{Code: code, Error: msg})
}
