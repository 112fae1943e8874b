/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import "errors"

// Validation errors are reported only to the client that caused them and
// never change room state.
var (
	ErrRoomNotFound    = errors.New("Room not found.")
	ErrRoomFull        = errors.New("Room is full.")
	ErrAlreadyStarted  = errors.New("Game has already started.")
	ErrNotAllReady     = errors.New("Not all players are ready.")
	ErrInvalidSettings = errors.New("Invalid game settings.")
	ErrClosed          = errors.New("room closed")
)
