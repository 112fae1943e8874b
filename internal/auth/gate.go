/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package auth verifies the bearer tokens presented when a websocket
// connection is opened.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("unknown user")
)

// Identity is the authenticated user behind a connection.
type Identity struct {
	ID          int64
	DisplayName string
}

// Users resolves a token subject to a display name.
type Users interface {
	UsernameByID(ctx context.Context, id int64) (string, error)
}

type claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Gate issues and verifies HS256 tokens.
type Gate struct {
	secret []byte
	users  Users
	now    func() time.Time
}

func NewGate(secret string, users Users) *Gate {
	return &Gate{
		secret: []byte(secret),
		users:  users,
		now:    time.Now,
	}
}

// Issue signs a token for the given user, valid for ttl.
func (g *Gate) Issue(id int64, username string, ttl time.Duration) (string, error) {
	now := g.now()

	c := claims{
		ID:       id,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the token signature and expiry, then looks the user up.
// The display name always comes from the store, never from the token.
func (g *Gate) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return g.secret, nil
	}, jwt.WithTimeFunc(g.now), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	name, err := g.users.UsernameByID(ctx, c.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnknownUser, err)
	}

	return Identity{ID: c.ID, DisplayName: name}, nil
}

// Authenticate verifies the token carried by r.
func (g *Gate) Authenticate(r *http.Request) (Identity, error) {
	return g.Verify(r.Context(), TokenFromRequest(r))
}

// TokenFromRequest reads a bearer token from the Authorization header,
// falling back to the token query parameter since browsers cannot set
// headers on websocket handshakes.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	return r.URL.Query().Get("token")
}
