package engine

import "errors"

var ErrLengthMismatch = errors.New("secret and guess length mismatch")

type LetterStatus string

const (
	StatusCorrect LetterStatus = "correct"
	StatusPresent LetterStatus = "present"
	StatusAbsent  LetterStatus = "absent"
)

// Evaluate scores guess against secret with the two-pass algorithm: exact
// matches first, then leftover letters by remaining count. A letter is never
// marked present/correct more times than it occurs in the secret. Works on
// runes, so Cyrillic secrets score the same as ASCII ones.
func Evaluate(secret, guess string) ([]LetterStatus, error) {
	s := []rune(secret)
	g := []rune(guess)
	if len(s) != len(g) {
		return nil, ErrLengthMismatch
	}

	res := make([]LetterStatus, len(s))
	counts := make(map[rune]int, len(s))

	for i := range s {
		if g[i] == s[i] {
			res[i] = StatusCorrect
		} else {
			counts[s[i]]++
		}
	}

	for i := range g {
		if res[i] == StatusCorrect {
			continue
		}
		if counts[g[i]] > 0 {
			res[i] = StatusPresent
			counts[g[i]]--
		} else {
			res[i] = StatusAbsent
		}
	}

	return res, nil
}

func AllCorrect(feedback []LetterStatus) bool {
	for _, st := range feedback {
		if st != StatusCorrect {
			return false
		}
	}
	return len(feedback) > 0
}
