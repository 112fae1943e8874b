/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import "github.com/Seednode/streetguess/internal/geo"

// Inbound message types.
const (
	TypeCreateRoom       = "createRoom"
	TypeJoinRoom         = "joinRoom"
	TypeToggleReady      = "toggleReady"
	TypeStartGame        = "startGame"
	TypeMakeGuess        = "makeGuess"
	TypeRequestNextRound = "requestNextRound"
)

// Outbound message types.
const (
	TypeLobbyCreated = "lobbyCreated"
	TypePlayerJoined = "playerJoined"
	TypePlayerReady  = "playerReady"
	TypeGameStarted  = "gameStarted"
	TypeNewLocation  = "newLocation"
	TypeRoundResult  = "roundResult"
	TypeGameOver     = "gameOver"
	TypePlayerLeft   = "playerLeft"
	TypeError        = "error"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string     `json:"type"`
	Code     string     `json:"code,omitempty"`     // every type but createRoom
	Settings *Settings  `json:"settings,omitempty"` // createRoom
	Guess    *geo.Point `json:"guess,omitempty"`    // makeGuess
}

// LobbyCreatedMessage carries the full room view. It answers createRoom,
// a successful joinRoom, and a same-name resync.
type LobbyCreatedMessage struct {
	Type string `json:"type"` // "lobbyCreated"
	Snapshot
}

// PlayersMessage announces a roster change.
type PlayersMessage struct {
	Type    string   `json:"type"` // "playerJoined" or "playerReady"
	Players []Player `json:"players"`
}

type GameStartedMessage struct {
	Type string `json:"type"` // "gameStarted"
	Snapshot
}

type NewLocationMessage struct {
	Type         string    `json:"type"` // "newLocation"
	Location     geo.Point `json:"location"`
	CurrentRound int       `json:"currentRound"`
}

type RoundResultMessage struct {
	Type           string            `json:"type"` // "roundResult"
	Results        map[string]Result `json:"results"`
	Players        []Player          `json:"players"`
	ActualLocation geo.Point         `json:"actualLocation"`
}

type GameOverMessage struct {
	Type        string   `json:"type"` // "gameOver"
	FinalScores []Player `json:"finalScores"`
}

type PlayerLeftMessage struct {
	Type    string   `json:"type"` // "playerLeft"
	Players []Player `json:"players"`
	NewHost string   `json:"newHost"`
}

// ErrorMessage is sent only to the client whose request failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
