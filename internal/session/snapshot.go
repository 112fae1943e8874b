/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import "github.com/Seednode/streetguess/internal/geo"

// SnapshotVersion changes whenever Snapshot's JSON shape does.
const SnapshotVersion = 1

// Snapshot is the room view sent to clients. It is rebuilt from hub state at
// every emission and never shares memory with it.
type Snapshot struct {
	Version      int        `json:"version"`
	Code         string     `json:"code"`
	Host         string     `json:"host"`
	Players      []Player   `json:"players"`
	Settings     Settings   `json:"settings"`
	CurrentRound int        `json:"currentRound"`
	TotalRounds  int        `json:"totalRounds"`
	Location     *geo.Point `json:"location,omitempty"`
}

func (h *Hub) snapshot() Snapshot {
	s := Snapshot{
		Version:      SnapshotVersion,
		Code:         h.code,
		Host:         h.host,
		Players:      h.roster.list(),
		Settings:     h.settings,
		CurrentRound: h.currentRound,
		TotalRounds:  h.settings.Rounds,
	}

	if h.location != nil {
		loc := *h.location
		s.Location = &loc
	}

	return s
}
