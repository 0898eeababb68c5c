// Package words supplies the dictionary capability: random secret words of a
// requested length and membership checks for guesses. Words are bucketed by
// rune length so Cyrillic lists behave the same as ASCII ones.
package words

import (
	"bufio"
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"os"
	"slices"
	"strings"
	"unicode/utf8"
)

var ErrNoWordsOfLength = errors.New("no words of requested length")

const (
	MinLength = 4
	MaxLength = 12
)

//go:embed default_words_ru.txt
var embeddedWords string

// List is a read-only, preloaded word list. Safe for concurrent use once
// built; nothing mutates it after Load.
type List struct {
	byLength map[int][]string
	members  map[string]struct{}
	lengths  []int
}

// Load reads one word per line from path, or falls back to the embedded
// default list when path is empty. Words outside the supported length range
// are dropped.
func Load(path string) (*List, error) {
	if path == "" {
		return parse(strings.NewReader(embeddedWords))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	l, err := parse(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load word list %s: %w", path, err)
	}
	return l, nil
}

func parse(r interface{ Read([]byte) (int, error) }) (*List, error) {
	l := &List{
		byLength: make(map[int][]string),
		members:  make(map[string]struct{}),
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.ToLower(strings.TrimSpace(sc.Text()))
		if w == "" {
			continue
		}
		n := utf8.RuneCountInString(w)
		if n < MinLength || n > MaxLength {
			continue
		}
		if _, dup := l.members[w]; dup {
			continue
		}
		l.byLength[n] = append(l.byLength[n], w)
		l.members[w] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(l.members) == 0 {
		return nil, errors.New("word list is empty")
	}
	for n := range l.byLength {
		l.lengths = append(l.lengths, n)
	}
	slices.Sort(l.lengths)
	return l, nil
}

// RandomWord draws a uniformly random word of the given rune length.
func (l *List) RandomWord(length int) (string, error) {
	bucket := l.byLength[length]
	if len(bucket) == 0 {
		return "", ErrNoWordsOfLength
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bucket))))
	if err != nil {
		return "", err
	}
	return bucket[n.Int64()], nil
}

// Contains reports whether word is a playable dictionary word.
func (l *List) Contains(word string) bool {
	_, ok := l.members[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// Lengths returns the word lengths available in this list, ascending.
func (l *List) Lengths() []int {
	return slices.Clone(l.lengths)
}

// Size reports the total number of loaded words.
func (l *List) Size() int { return len(l.members) }
