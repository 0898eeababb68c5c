package engine

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrInvalidConfig = errors.New("invalid lobby config")
var ErrLobbyFull = errors.New("lobby is full")
var ErrAlreadyStarted = errors.New("game already started")
var ErrNotHost = errors.New("only the host may do that")
var ErrNotActive = errors.New("game is not active")
var ErrRoundOver = errors.New("round is over")
var ErrWrongLength = errors.New("wrong word length")
var ErrNotInDictionary = errors.New("word is not in the dictionary")
var ErrTargetNotFound = errors.New("target player not found")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrNotTeamMode = errors.New("lobby is not in team mode")
var ErrUnsupportedCommand = errors.New("unsupported command")

const MaxPlayers = 4

const (
	MinAttempts = 4
	MaxAttempts = 8
	MaxNameLen  = 32
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseActive   Phase = "active"
	PhaseRoundEnd Phase = "round_end"
	PhaseDeleted  Phase = "deleted"
)

type Team string

const (
	TeamNone Team = ""
	TeamA    Team = "A"
	TeamB    Team = "B"
)

type HostLeavePolicy string

const (
	HostLeaveDelete  HostLeavePolicy = "delete"
	HostLeavePromote HostLeavePolicy = "promote"
)

// WordSource is the dictionary capability the engine draws secrets from and
// validates guesses against.
type WordSource interface {
	RandomWord(length int) (string, error)
	Contains(word string) bool
	Lengths() []int
}

// Deps carries the injected collaborators Apply needs. Keeping them out of
// State means the rules stay deterministic under test: stub the source and
// the clock and every transition is reproducible.
type Deps struct {
	Words WordSource
	NewID func() string
	Now   func() time.Time
}

type Config struct {
	WordLength           int
	AttemptsLimit        int
	Timed                bool
	RoundSeconds         int
	TeamMode             bool
	ResetScoresOnRestart bool
	HostLeavePolicy      HostLeavePolicy
}

// Guess is immutable once appended to its player's history.
type Guess struct {
	Word     string
	Feedback []LetterStatus
}

type Player struct {
	ID        string
	Name      string
	Team      Team
	Guesses   []Guess
	Connected bool
}

// State is the full mutable session state for one lobby. It is owned by a
// single goroutine (the lobby actor); Apply is the only mutation path.
type State struct {
	Code       string
	HostID     string
	Config     Config
	Phase      Phase
	Word       string
	Words      []string // every secret used this round window (timed mode)
	Deadline   time.Time
	Players    []*Player // join order
	Scores     map[string]int
	TeamScores map[Team]int
	WinnerID   string
	WinnerWord string
}

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdStart        CommandType = "Start"
	CmdGuess        CommandType = "Guess"
	CmdRestart      CommandType = "Restart"
	CmdKick         CommandType = "Kick"
	CmdTeamChange   CommandType = "TeamChange"
	CmdLeave        CommandType = "Leave"
	CmdDelete       CommandType = "Delete"
	CmdReconnect    CommandType = "Reconnect"
	CmdDisconnect   CommandType = "Disconnect"
	CmdTimerExpired CommandType = "TimerExpired"
)

type Command struct {
	Type     CommandType
	PlayerID string
	TargetID string
	Name     string
	Word     string
	Team     Team
}

type EventType string

const (
	EvtPlayerJoined       EventType = "PlayerJoined"
	EvtGameStarted        EventType = "GameStarted"
	EvtGuessApplied       EventType = "GuessApplied"
	EvtRoundWon           EventType = "RoundWon"
	EvtWordAdvanced       EventType = "WordAdvanced"
	EvtRoundEnded         EventType = "RoundEnded"
	EvtRestarted          EventType = "Restarted"
	EvtPlayerKicked       EventType = "PlayerKicked"
	EvtTeamChanged        EventType = "TeamChanged"
	EvtPlayerLeft         EventType = "PlayerLeft"
	EvtHostChanged        EventType = "HostChanged"
	EvtLobbyDeleted       EventType = "LobbyDeleted"
	EvtPlayerReconnected  EventType = "PlayerReconnected"
	EvtPlayerDisconnected EventType = "PlayerDisconnected"
)

type Event struct {
	Type     EventType
	PlayerID string
	Word     string
}

// Apply runs one command against the state. On error the state is untouched
// and no events are produced; the error is the caller's alone to report.
func Apply(s *State, deps Deps, cmd Command) ([]Event, error) {
	if s.Phase == PhaseDeleted {
		return nil, ErrUnknownPlayer
	}

	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, deps, cmd)
	case CmdStart:
		return applyStart(s, deps, cmd)
	case CmdGuess:
		return applyGuess(s, deps, cmd)
	case CmdRestart:
		return applyRestart(s, deps, cmd)
	case CmdKick:
		return applyKick(s, cmd)
	case CmdTeamChange:
		return applyTeamChange(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdDelete:
		return applyDelete(s, cmd)
	case CmdReconnect:
		return applyLiveness(s, cmd, true)
	case CmdDisconnect:
		return applyLiveness(s, cmd, false)
	case CmdTimerExpired:
		return applyTimerExpired(s)
	default:
		return nil, ErrUnsupportedCommand
	}
}

func applyJoin(s *State, deps Deps, cmd Command) ([]Event, error) {
	if s.Phase != PhaseWaiting {
		return nil, ErrAlreadyStarted
	}
	if len(s.Players) >= MaxPlayers {
		return nil, ErrLobbyFull
	}
	name, ok := normalizeName(cmd.Name)
	if !ok {
		return nil, ErrInvalidConfig
	}

	p := &Player{ID: deps.NewID(), Name: name}
	if s.Config.TeamMode {
		p.Team = smallerTeam(s)
	}
	s.Players = append(s.Players, p)
	s.Scores[p.ID] = 0

	return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID}}, nil
}

func applyStart(s *State, deps Deps, cmd Command) ([]Event, error) {
	if _, ok := s.Player(cmd.PlayerID); !ok {
		return nil, ErrUnknownPlayer
	}
	if cmd.PlayerID != s.HostID {
		return nil, ErrNotHost
	}
	if s.Phase != PhaseWaiting {
		return nil, ErrAlreadyStarted
	}

	word, err := deps.Words.RandomWord(s.Config.WordLength)
	if err != nil {
		return nil, err
	}

	s.Word = word
	s.WinnerID = ""
	s.WinnerWord = ""
	if s.Config.Timed {
		s.Words = []string{word}
		s.Deadline = deps.Now().Add(time.Duration(s.Config.RoundSeconds) * time.Second)
	}
	s.Phase = PhaseActive

	return []Event{{Type: EvtGameStarted}}, nil
}

func applyGuess(s *State, deps Deps, cmd Command) ([]Event, error) {
	p, ok := s.Player(cmd.PlayerID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	switch s.Phase {
	case PhaseActive:
	case PhaseRoundEnd:
		return nil, ErrRoundOver
	default:
		return nil, ErrNotActive
	}
	// A fired-but-unprocessed timer must still win: anything at or past the
	// deadline is rejected, never evaluated.
	if s.Config.Timed && !deps.Now().Before(s.Deadline) {
		return nil, ErrRoundOver
	}
	if len(p.Guesses) >= s.Config.AttemptsLimit {
		return nil, ErrRoundOver
	}

	word := strings.ToLower(strings.TrimSpace(cmd.Word))
	if utf8.RuneCountInString(word) != s.Config.WordLength {
		return nil, ErrWrongLength
	}
	// Reject before evaluating so an off-dictionary probe leaks nothing.
	if !deps.Words.Contains(word) {
		return nil, ErrNotInDictionary
	}

	feedback, err := Evaluate(s.Word, word)
	if err != nil {
		return nil, err
	}
	p.Guesses = append(p.Guesses, Guess{Word: word, Feedback: feedback})
	events := []Event{{Type: EvtGuessApplied, PlayerID: p.ID, Word: word}}

	if AllCorrect(feedback) {
		s.WinnerID = p.ID
		s.WinnerWord = s.Word
		s.Scores[p.ID]++
		if s.Config.TeamMode {
			s.TeamScores[p.Team]++
		}
		events = append(events, Event{Type: EvtRoundWon, PlayerID: p.ID, Word: s.Word})

		if s.Config.Timed {
			if err := advanceWord(s, deps); err != nil {
				return nil, err
			}
			events = append(events, Event{Type: EvtWordAdvanced})
		} else {
			s.Phase = PhaseRoundEnd
			events = append(events, Event{Type: EvtRoundEnded})
		}
		return events, nil
	}

	if s.allExhausted() {
		if s.Config.Timed {
			// Nobody got this one; burn the word and keep the window playable.
			if err := advanceWord(s, deps); err != nil {
				return nil, err
			}
			events = append(events, Event{Type: EvtWordAdvanced})
		} else {
			s.WinnerID = ""
			s.WinnerWord = ""
			s.Phase = PhaseRoundEnd
			events = append(events, Event{Type: EvtRoundEnded})
		}
	}

	return events, nil
}

func applyRestart(s *State, deps Deps, cmd Command) ([]Event, error) {
	if _, ok := s.Player(cmd.PlayerID); !ok {
		return nil, ErrUnknownPlayer
	}
	if cmd.PlayerID != s.HostID {
		return nil, ErrNotHost
	}
	if s.Phase == PhaseWaiting {
		return nil, ErrNotActive
	}

	word, err := deps.Words.RandomWord(s.Config.WordLength)
	if err != nil {
		return nil, err
	}

	s.Word = word
	s.WinnerID = ""
	s.WinnerWord = ""
	for _, p := range s.Players {
		p.Guesses = nil
	}
	if s.Config.ResetScoresOnRestart {
		for id := range s.Scores {
			s.Scores[id] = 0
		}
		for t := range s.TeamScores {
			s.TeamScores[t] = 0
		}
	}
	if s.Config.Timed {
		s.Words = []string{word}
		s.Deadline = deps.Now().Add(time.Duration(s.Config.RoundSeconds) * time.Second)
	}
	s.Phase = PhaseActive

	return []Event{{Type: EvtRestarted}}, nil
}

func applyKick(s *State, cmd Command) ([]Event, error) {
	if _, ok := s.Player(cmd.PlayerID); !ok {
		return nil, ErrUnknownPlayer
	}
	if cmd.PlayerID != s.HostID {
		return nil, ErrNotHost
	}
	if cmd.TargetID == s.HostID {
		return nil, ErrTargetNotFound
	}
	if _, ok := s.Player(cmd.TargetID); !ok {
		return nil, ErrTargetNotFound
	}

	s.removePlayer(cmd.TargetID)
	return []Event{{Type: EvtPlayerKicked, PlayerID: cmd.TargetID}}, nil
}

func applyTeamChange(s *State, cmd Command) ([]Event, error) {
	if !s.Config.TeamMode {
		return nil, ErrNotTeamMode
	}
	if _, ok := s.Player(cmd.PlayerID); !ok {
		return nil, ErrUnknownPlayer
	}
	if cmd.PlayerID != s.HostID {
		return nil, ErrNotHost
	}
	if cmd.Team != TeamA && cmd.Team != TeamB {
		return nil, ErrUnsupportedCommand
	}
	target, ok := s.Player(cmd.TargetID)
	if !ok {
		return nil, ErrTargetNotFound
	}

	target.Team = cmd.Team
	return []Event{{Type: EvtTeamChanged, PlayerID: target.ID}}, nil
}

func applyLeave(s *State, cmd Command) ([]Event, error) {
	p, ok := s.Player(cmd.PlayerID)
	if !ok {
		return nil, ErrUnknownPlayer
	}

	if p.ID == s.HostID {
		if s.Config.HostLeavePolicy == HostLeavePromote && len(s.Players) > 1 {
			s.removePlayer(p.ID)
			s.HostID = s.Players[0].ID
			return []Event{
				{Type: EvtPlayerLeft, PlayerID: p.ID},
				{Type: EvtHostChanged, PlayerID: s.HostID},
			}, nil
		}
		s.Phase = PhaseDeleted
		return []Event{
			{Type: EvtPlayerLeft, PlayerID: p.ID},
			{Type: EvtLobbyDeleted},
		}, nil
	}

	s.removePlayer(p.ID)
	return []Event{{Type: EvtPlayerLeft, PlayerID: p.ID}}, nil
}

func applyDelete(s *State, cmd Command) ([]Event, error) {
	if _, ok := s.Player(cmd.PlayerID); !ok {
		return nil, ErrUnknownPlayer
	}
	if cmd.PlayerID != s.HostID {
		return nil, ErrNotHost
	}

	s.Phase = PhaseDeleted
	return []Event{{Type: EvtLobbyDeleted}}, nil
}

func applyLiveness(s *State, cmd Command, connected bool) ([]Event, error) {
	p, ok := s.Player(cmd.PlayerID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	p.Connected = connected
	if connected {
		return []Event{{Type: EvtPlayerReconnected, PlayerID: p.ID}}, nil
	}
	return []Event{{Type: EvtPlayerDisconnected, PlayerID: p.ID}}, nil
}

func applyTimerExpired(s *State) ([]Event, error) {
	// Stale fires land here after a restart or an already-finished round.
	if !s.Config.Timed || s.Phase != PhaseActive {
		return nil, nil
	}
	s.Phase = PhaseRoundEnd
	return []Event{{Type: EvtRoundEnded}}, nil
}

func advanceWord(s *State, deps Deps) error {
	word, err := deps.Words.RandomWord(s.Config.WordLength)
	if err != nil {
		return err
	}
	s.Word = word
	s.Words = append(s.Words, word)
	for _, p := range s.Players {
		p.Guesses = nil
	}
	return nil
}
