/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Seednode/streetguess/internal/auth"
	"github.com/Seednode/streetguess/internal/session"
)

const (
	outboxSize     = 32
	maxMessageSize = 4096
	pongWait       = time.Minute
	pingPeriod     = pongWait * 9 / 10
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// authStatus maps a gate failure to the handshake response code.
func authStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, auth.ErrNoToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrUnknownUser):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func messageLimiter(perSecond float64) *rate.Limiter {
	burst := int(math.Ceil(perSecond))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// serveWS authenticates before upgrading, so a refused connection never
// reaches a room.
func serveWS(cfg *Config, gm *session.GameManager, gate *auth.Gate) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ident, err := gate.Authenticate(r)
		if err != nil {
			logf("AUTH: Refused websocket from %s: %v", realIP(r), err)
			http.Error(w, http.StatusText(authStatus(err)), authStatus(err))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		client := session.NewClient(uuid.NewString(), ident.DisplayName, outboxSize)

		logf("CONNECT: %s (%s) from %s", ident.DisplayName, client.ID, realIP(r))

		go writePump(conn, client)
		readPump(cfg, conn, gm, client)
	}
}

// readPump feeds inbound messages to the manager in arrival order and
// disconnects the client when the socket closes.
func readPump(cfg *Config, conn *websocket.Conn, gm *session.GameManager, c *session.Client) {
	defer func() {
		gm.Disconnect(c)
		c.Close()
		_ = conn.Close()

		logf("DISCONNECT: %s (%s)", c.Name, c.ID)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := messageLimiter(cfg.messageRate)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if !limiter.Allow() {
			logf("RATE: Dropped message from %s (%s)", c.Name, c.ID)
			continue
		}

		var msg session.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logf("DECODE: Ignored malformed message from %s (%s): %v", c.Name, c.ID, err)
			continue
		}

		gm.Handle(c, msg)
	}
}

// writePump is the only writer on conn.
func writePump(conn *websocket.Conn, c *session.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg := <-c.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
