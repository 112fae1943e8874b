/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Seednode/streetguess/internal/locations"
)

type Options struct {
	// Locator is required.
	Locator  locations.Provider
	Recorder ScoreRecorder
	Log      zerolog.Logger

	// IdleTimeout closes rooms with no activity for this long; 0 disables it.
	IdleTimeout time.Duration

	// Codes overrides RandomCode.
	Codes func() string
}

// GameManager holds the live rooms keyed by code.
type GameManager struct {
	mu   sync.Mutex
	hubs map[string]*Hub
	opts Options

	stop     chan struct{}
	stopOnce sync.Once
}

func NewGameManager(opts Options) *GameManager {
	if opts.Codes == nil {
		opts.Codes = RandomCode
	}

	gm := &GameManager{
		hubs: make(map[string]*Hub),
		opts: opts,
		stop: make(chan struct{}),
	}

	if opts.IdleTimeout > 0 {
		go gm.reaperLoop()
	}

	return gm
}

// Handle routes one client message. It is called from the client's read
// loop, so messages from a single client arrive at a hub in order.
func (gm *GameManager) Handle(c *Client, msg ClientMessage) {
	if msg.Type == TypeCreateRoom {
		var settings Settings
		if msg.Settings != nil {
			settings = *msg.Settings
		}

		if _, err := gm.Create(c, settings); err != nil {
			c.sendError(err)
		}

		return
	}

	switch msg.Type {
	case TypeJoinRoom, TypeToggleReady, TypeStartGame, TypeMakeGuess, TypeRequestNextRound:
	default:
		return
	}

	h, ok := gm.Get(NormalizeCode(msg.Code))
	if ok && h.submit(request{client: c, msg: msg, from: c.room()}) {
		return
	}

	if msg.Type == TypeJoinRoom {
		c.sendError(ErrRoomNotFound)
	}
}

// Create opens a room with c as its host. c leaves any room it was in.
func (gm *GameManager) Create(c *Client, settings Settings) (*Hub, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if prev := c.room(); prev != nil {
		prev.leave(c)
	}

	gm.mu.Lock()
	code := gm.allocateLocked()
	h := newHub(gm, code, settings, c)
	gm.hubs[code] = h
	gm.mu.Unlock()

	c.swapRoom(h)

	go h.run()

	return h, nil
}

// allocateLocked returns a code no live room holds. gm.mu must be held, so
// the check and the insert that follows are atomic.
func (gm *GameManager) allocateLocked() string {
	for {
		code := gm.opts.Codes()
		if _, exists := gm.hubs[code]; !exists {
			return code
		}
	}
}

func (gm *GameManager) Get(code string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	h, ok := gm.hubs[code]
	return h, ok
}

func (gm *GameManager) Len() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return len(gm.hubs)
}

// Disconnect removes c from its room, if any.
func (gm *GameManager) Disconnect(c *Client) {
	if h := c.room(); h != nil {
		h.leave(c)
	}
}

// destroy drops h from the registry if it is still the room under its code.
func (gm *GameManager) destroy(h *Hub) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if gm.hubs[h.code] == h {
		delete(gm.hubs, h.code)
	}
}

// Close stops the reaper and shuts every room down.
func (gm *GameManager) Close() {
	gm.stopOnce.Do(func() { close(gm.stop) })

	gm.mu.Lock()
	hubs := make([]*Hub, 0, len(gm.hubs))
	for code, h := range gm.hubs {
		hubs = append(hubs, h)
		delete(gm.hubs, code)
	}
	gm.mu.Unlock()

	for _, h := range hubs {
		h.shutdown(ErrClosed)
		<-h.done
	}
}

// reaperLoop periodically removes rooms that have been idle longer than
// IdleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.opts.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.stop:
			return
		case now := <-ticker.C:
			gm.reap(now)
		}
	}
}

func (gm *GameManager) reap(now time.Time) int {
	cutoff := now.Add(-gm.opts.IdleTimeout)

	gm.mu.Lock()
	var idle []*Hub
	for code, h := range gm.hubs {
		if h.LastActive().Before(cutoff) {
			delete(gm.hubs, code)
			idle = append(idle, h)
		}
	}
	gm.mu.Unlock()

	for _, h := range idle {
		gm.opts.Log.Info().Str("room", h.code).Msg("closing idle room")
		h.shutdown(errIdle)
	}

	return len(idle)
}
