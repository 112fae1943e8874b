/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session runs game rooms. Each room is a Hub whose state is owned by
// a single goroutine fed through ordered channels; the GameManager maps room
// codes to hubs and owns their creation and destruction.
package session

import (
	"context"

	"github.com/Seednode/streetguess/internal/geo"
	"github.com/Seednode/streetguess/internal/locations"
)

const MaxPlayers = 8

type GameType string

const (
	Singleplayer GameType = "singleplayer"
	Multiplayer  GameType = "multiplayer"
)

type Settings struct {
	Type   GameType       `json:"type"`
	Mode   locations.Mode `json:"mode"`
	Rounds int            `json:"rounds"`
}

func (s Settings) Validate() error {
	if s.Type != Singleplayer && s.Type != Multiplayer {
		return ErrInvalidSettings
	}
	if !s.Mode.Valid() || s.Rounds < 1 {
		return ErrInvalidSettings
	}
	return nil
}

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Ready bool   `json:"ready"`
}

// Result is one player's outcome for a scored round.
type Result struct {
	Guess    geo.Point `json:"guess"`
	Score    int       `json:"score"`
	Distance string    `json:"distance"` // kilometres, two decimals
}

// ScoreRecorder adds a finished game's points to a player's durable total.
type ScoreRecorder interface {
	AddScore(ctx context.Context, username string, points int) error
}
