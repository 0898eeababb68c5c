package types

import (
	"errors"

	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/internal/words"
	"github.com/wordduel/wordduel-backend/pkg/types"
)

type ClientMessage struct {
	Type     string `json:"type"`
	Word     string `json:"word,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Team     string `json:"team,omitempty"`
}

type ServerMessage struct {
	Type  string          `json:"type"` // "StateSnapshot" | "Error"
	State *types.Snapshot `json:"state,omitempty"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ErrorCode maps a command rejection to its stable wire identifier.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, engine.ErrLobbyFull):
		return "lobby_full"
	case errors.Is(err, engine.ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, engine.ErrNotHost):
		return "not_host"
	case errors.Is(err, engine.ErrNotActive):
		return "not_active"
	case errors.Is(err, engine.ErrRoundOver):
		return "round_over"
	case errors.Is(err, engine.ErrWrongLength):
		return "wrong_length"
	case errors.Is(err, engine.ErrNotInDictionary):
		return "not_in_dictionary"
	case errors.Is(err, engine.ErrTargetNotFound):
		return "target_not_found"
	case errors.Is(err, engine.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, engine.ErrNotTeamMode):
		return "not_team_mode"
	case errors.Is(err, words.ErrNoWordsOfLength):
		return "no_words_of_length"
	case errors.Is(err, engine.ErrUnsupportedCommand):
		return "unsupported_command"
	default:
		return "internal"
	}
}
