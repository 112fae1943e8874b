/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"crypto/rand"
	"strings"
)

const (
	// CodeAlphabet leaves out 0/O and 1/I.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 4
)

// RandomCode draws a room code from crypto/rand. len(CodeAlphabet) divides
// 256, so the modulo keeps every character equally likely.
func RandomCode() string {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, CodeLength)
	for i := range out {
		out[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
	}

	return string(out)
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
