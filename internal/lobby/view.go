package lobby

import (
	"github.com/wordduel/wordduel-backend/internal/engine"
	"github.com/wordduel/wordduel-backend/pkg/types"
)

// snapshotFor builds the masked view for one recipient. Masking happens
// here, per connection, before anything is handed to a transport: the viewer
// gets their own guesses, teammates' guesses only in team mode, and for
// opponents nothing beyond counts and flags.
func (l *Lobby) snapshotFor(viewerID string) *types.Snapshot {
	s := l.state

	var viewerTeam engine.Team
	if viewer, ok := s.Player(viewerID); ok {
		viewerTeam = viewer.Team
	}

	snap := &types.Snapshot{
		Version:          l.version,
		Code:             s.Code,
		WordLength:       s.Config.WordLength,
		AttemptsLimit:    s.Config.AttemptsLimit,
		Timed:            s.Config.Timed,
		TeamMode:         s.Config.TeamMode,
		HostID:           s.HostID,
		Phase:            string(s.Phase),
		Started:          s.Phase != engine.PhaseWaiting,
		WinnerID:         s.WinnerID,
		WinnerWord:       s.WinnerWord,
		RemainingSeconds: s.RemainingSeconds(l.deps.Now()),
	}

	// Nobody got it: the secret is public once the round is over.
	if s.Phase == engine.PhaseRoundEnd && s.WinnerID == "" {
		snap.RevealedWord = s.Word
	}

	if s.Config.TeamMode {
		snap.TeamScores = make(map[string]int, len(s.TeamScores))
		for t, n := range s.TeamScores {
			snap.TeamScores[string(t)] = n
		}
	}

	for _, p := range s.Players {
		pv := types.PlayerView{
			ID:         p.ID,
			Name:       p.Name,
			Team:       string(p.Team),
			Connected:  p.Connected,
			Score:      s.Scores[p.ID],
			GuessCount: len(p.Guesses),
			Exhausted:  len(p.Guesses) >= s.Config.AttemptsLimit,
			Won:        s.WinnerID == p.ID,
			Guesses:    []types.GuessView{},
		}

		visible := p.ID == viewerID ||
			(s.Config.TeamMode && viewerTeam != engine.TeamNone && p.Team == viewerTeam)
		if visible {
			for _, g := range p.Guesses {
				fb := make([]string, len(g.Feedback))
				for i, st := range g.Feedback {
					fb[i] = string(st)
				}
				pv.Guesses = append(pv.Guesses, types.GuessView{Word: g.Word, Feedback: fb})
			}
		}

		snap.Players = append(snap.Players, pv)
	}

	return snap
}
