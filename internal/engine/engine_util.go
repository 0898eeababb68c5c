package engine

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// NewState builds a fresh lobby in the waiting phase with the host as its
// sole player. The host's connection starts dead until a socket attaches.
func NewState(code string, deps Deps, cfg Config, hostName string) (*State, error) {
	if cfg.HostLeavePolicy == "" {
		cfg.HostLeavePolicy = HostLeaveDelete
	}
	if err := validateConfig(cfg, deps.Words); err != nil {
		return nil, err
	}
	name, ok := normalizeName(hostName)
	if !ok {
		return nil, ErrInvalidConfig
	}

	host := &Player{ID: deps.NewID(), Name: name}
	if cfg.TeamMode {
		host.Team = TeamA
	}

	s := &State{
		Code:       code,
		HostID:     host.ID,
		Config:     cfg,
		Phase:      PhaseWaiting,
		Players:    []*Player{host},
		Scores:     map[string]int{host.ID: 0},
		TeamScores: map[Team]int{},
	}
	if cfg.TeamMode {
		s.TeamScores[TeamA] = 0
		s.TeamScores[TeamB] = 0
	}
	return s, nil
}

func validateConfig(cfg Config, words WordSource) error {
	if !slices.Contains(words.Lengths(), cfg.WordLength) {
		return ErrInvalidConfig
	}
	if cfg.AttemptsLimit < MinAttempts || cfg.AttemptsLimit > MaxAttempts {
		return ErrInvalidConfig
	}
	if cfg.Timed && cfg.RoundSeconds <= 0 {
		return ErrInvalidConfig
	}
	if cfg.HostLeavePolicy != HostLeaveDelete && cfg.HostLeavePolicy != HostLeavePromote {
		return ErrInvalidConfig
	}
	return nil
}

func normalizeName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxNameLen {
		return "", false
	}
	return name, true
}

func (s *State) Player(id string) (*Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (s *State) removePlayer(id string) {
	s.Players = slices.DeleteFunc(s.Players, func(p *Player) bool { return p.ID == id })
	delete(s.Scores, id)
	if s.WinnerID == id {
		s.WinnerID = ""
		s.WinnerWord = ""
	}
}

func (s *State) allExhausted() bool {
	for _, p := range s.Players {
		if len(p.Guesses) < s.Config.AttemptsLimit {
			return false
		}
	}
	return len(s.Players) > 0
}

// smallerTeam picks the side a joining player lands on by default.
func smallerTeam(s *State) Team {
	var a, b int
	for _, p := range s.Players {
		switch p.Team {
		case TeamA:
			a++
		case TeamB:
			b++
		}
	}
	if b < a {
		return TeamB
	}
	return TeamA
}

// RemainingSeconds reports the whole seconds left on the round clock,
// rounded up so a freshly armed round shows the full duration.
func (s *State) RemainingSeconds(now time.Time) int {
	if !s.Config.Timed || s.Phase != PhaseActive {
		return 0
	}
	d := s.Deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
