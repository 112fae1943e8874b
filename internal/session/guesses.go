/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"strconv"

	"github.com/Seednode/streetguess/internal/geo"
)

// guessBook holds at most one guess per roster member for the current round.
type guessBook struct {
	guesses map[string]geo.Point
}

func newGuessBook() guessBook {
	return guessBook{guesses: make(map[string]geo.Point)}
}

// submit records g for id unless id already guessed or is not in r.
func (b *guessBook) submit(r *roster, id string, g geo.Point) bool {
	if _, ok := r.get(id); !ok {
		return false
	}
	if _, ok := b.guesses[id]; ok {
		return false
	}
	b.guesses[id] = g
	return true
}

func (b *guessBook) drop(id string) {
	delete(b.guesses, id)
}

func (b *guessBook) has(id string) bool {
	_, ok := b.guesses[id]
	return ok
}

func (b *guessBook) len() int {
	return len(b.guesses)
}

func (b *guessBook) reset() {
	clear(b.guesses)
}

// complete reports whether every id in members has guessed. members must be
// read from the roster at the time of the check.
func (b *guessBook) complete(members []string) bool {
	if len(members) == 0 {
		return false
	}
	for _, id := range members {
		if _, ok := b.guesses[id]; !ok {
			return false
		}
	}
	return true
}

// score grades every member's guess against actual.
func (b *guessBook) score(members []string, actual geo.Point) map[string]Result {
	results := make(map[string]Result, len(members))
	for _, id := range members {
		g, ok := b.guesses[id]
		if !ok {
			continue
		}
		meters := geo.Distance(g, actual)
		results[id] = Result{
			Guess:    g,
			Score:    geo.Score(meters),
			Distance: strconv.FormatFloat(meters/1000, 'f', 2, 64),
		}
	}
	return results
}
