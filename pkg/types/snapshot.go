// Package types holds the outbound state shapes consumed by presentation
// layers. A Snapshot is always built for one recipient: guesses belonging to
// opponents are stripped server-side before it ever leaves the lobby, so the
// wire never carries information the viewer is not entitled to.
package types

// GuessView is one scored guess as the viewer is allowed to see it.
type GuessView struct {
	Word     string   `json:"word"`
	Feedback []string `json:"feedback"`
}

// PlayerView is a roster entry. Guesses is populated only for the viewer
// themselves and, in team mode, their teammates; for everyone else it is
// empty and only the aggregate fields below are meaningful.
type PlayerView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Team       string      `json:"team,omitempty"`
	Connected  bool        `json:"connected"`
	Score      int         `json:"score"`
	GuessCount int         `json:"guessCount"`
	Exhausted  bool        `json:"exhausted"`
	Won        bool        `json:"won"`
	Guesses    []GuessView `json:"guesses"`
}

// Snapshot is the per-recipient view of one lobby at one version.
type Snapshot struct {
	Version          int            `json:"version"`
	Code             string         `json:"code"`
	WordLength       int            `json:"wordLength"`
	AttemptsLimit    int            `json:"attemptsLimit"`
	Timed            bool           `json:"timed"`
	TeamMode         bool           `json:"teamMode"`
	HostID           string         `json:"hostId"`
	Phase            string         `json:"phase"`
	Started          bool           `json:"started"`
	WinnerID         string         `json:"winnerId,omitempty"`
	WinnerWord       string         `json:"winnerWord,omitempty"`
	RevealedWord     string         `json:"revealedWord,omitempty"`
	TeamScores       map[string]int `json:"teamScores,omitempty"`
	RemainingSeconds int            `json:"remainingSeconds,omitempty"`
	Players          []PlayerView   `json:"players"`
}
