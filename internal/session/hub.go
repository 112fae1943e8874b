/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Seednode/streetguess/internal/geo"
	"github.com/Seednode/streetguess/internal/locations"
)

var errIdle = errors.New("Room closed due to inactivity.")

// request is one entry in a hub's ordered inbox: a client message, a
// departure, or a state inspection.
type request struct {
	client *Client
	msg    ClientMessage
	leave  bool
	reply  chan hubState

	// from is the client's room when the message was dispatched.
	from *Hub
}

type locationResult struct {
	seq   int
	point geo.Point
}

// hubState is a point-in-time copy of a hub, including fields that are
// never sent to clients.
type hubState struct {
	Snapshot
	Guessed []string
	Pending bool
	Scored  bool
}

// Hub is one room. Every field below the channels is owned by the run
// goroutine and must not be touched from anywhere else.
type Hub struct {
	code     string
	settings Settings
	manager  *GameManager
	log      zerolog.Logger
	locator  locations.Provider
	recorder ScoreRecorder

	inbox    chan request
	located  chan locationResult
	quit     chan struct{}
	quitErr  error
	quitOnce sync.Once
	done     chan struct{}

	// closing unblocks pending sends; closed, set under sendMu, refuses new ones.
	closing chan struct{}
	sendMu  sync.RWMutex
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc

	lastActive atomic.Int64

	roster       roster
	clients      map[string]*Client
	host         string
	currentRound int
	location     *geo.Point
	guesses      guessBook
	scored       bool // results for the current round were already sent
	pending      int  // seq of the in-flight location lookup, 0 if none
	seq          int
}

func newHub(gm *GameManager, code string, settings Settings, creator *Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		code:     code,
		settings: settings,
		manager:  gm,
		log:      gm.opts.Log.With().Str("room", code).Logger(),
		locator:  gm.opts.Locator,
		recorder: gm.opts.Recorder,
		inbox:    make(chan request, 64),
		located:  make(chan locationResult),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		roster:   newRoster(),
		clients:  make(map[string]*Client),
		guesses:  newGuessBook(),
	}

	// The creator starts ready, so a solo lobby can always be started.
	h.roster.add(Player{ID: creator.ID, Name: creator.Name, Ready: true})
	h.clients[creator.ID] = creator
	h.host = creator.ID
	h.touch()

	return h
}

func (h *Hub) Code() string {
	return h.code
}

// Done is closed when the room has been destroyed.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) LastActive() time.Time {
	return time.Unix(0, h.lastActive.Load())
}

func (h *Hub) touch() {
	h.lastActive.Store(time.Now().UnixNano())
}

// submit queues r, reporting false if the room no longer exists. Anything
// queued is either handled by the run loop or drained by exit.
func (h *Hub) submit(r request) bool {
	h.sendMu.RLock()
	defer h.sendMu.RUnlock()

	if h.closed {
		return false
	}

	select {
	case h.inbox <- r:
		return true
	case <-h.closing:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	h.submit(request{client: c, leave: true})
}

// shutdown ends the room, telling every remaining client why.
func (h *Hub) shutdown(reason error) {
	h.quitOnce.Do(func() {
		h.quitErr = reason
		close(h.quit)
	})
}

func (h *Hub) state(ctx context.Context) (hubState, error) {
	reply := make(chan hubState, 1)

	select {
	case h.inbox <- request{reply: reply}:
	case <-h.done:
		return hubState{}, ErrRoomNotFound
	case <-ctx.Done():
		return hubState{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return hubState{}, ErrRoomNotFound
	case <-ctx.Done():
		return hubState{}, ctx.Err()
	}
}

// Snapshot returns the room as clients currently see it.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	s, err := h.state(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot, nil
}

func (h *Hub) run() {
	defer h.exit()

	h.welcome()

	for h.roster.len() > 0 {
		select {
		case r := <-h.inbox:
			h.handle(r)

		case res := <-h.located:
			h.handleLocated(res)

		case <-h.quit:
			for _, c := range h.clients {
				c.sendError(h.quitErr)
			}
			return
		}
	}

	h.log.Info().Msg("room is empty, destroying")
}

func (h *Hub) exit() {
	h.cancel()
	h.manager.destroy(h)

	close(h.closing)
	h.sendMu.Lock()
	h.closed = true
	h.sendMu.Unlock()

	h.drain()

	for _, c := range h.clients {
		c.leaveRoom(h)
	}

	close(h.done)
}

// drain answers joins that were queued after the room emptied.
func (h *Hub) drain() {
	for {
		select {
		case r := <-h.inbox:
			if r.msg.Type == TypeJoinRoom && !r.leave && r.client.room() == r.from {
				r.client.sendError(ErrRoomNotFound)
			}
		default:
			return
		}
	}
}

func (h *Hub) welcome() {
	creator := h.clients[h.host]

	h.log.Info().
		Str("player", creator.Name).
		Str("type", string(h.settings.Type)).
		Str("mode", string(h.settings.Mode)).
		Int("rounds", h.settings.Rounds).
		Msg("room created")

	creator.deliver(LobbyCreatedMessage{Type: TypeLobbyCreated, Snapshot: h.snapshot()})

	if h.settings.Type == Singleplayer {
		h.start()
	}
}

func (h *Hub) handle(r request) {
	if r.reply != nil {
		r.reply <- h.inspectState()
		return
	}

	h.touch()

	if r.leave {
		h.handleLeave(r.client)
		return
	}

	switch r.msg.Type {
	case TypeJoinRoom:
		h.handleJoin(r.client, r.from)
	case TypeToggleReady:
		h.handleToggleReady(r.client)
	case TypeStartGame:
		h.handleStart(r.client)
	case TypeMakeGuess:
		if r.msg.Guess != nil {
			h.handleGuess(r.client, *r.msg.Guess)
		}
	case TypeRequestNextRound:
		h.handleNextRound(r.client)
	}
}

func (h *Hub) inspectState() hubState {
	guessed := make([]string, 0, h.guesses.len())
	for _, id := range h.roster.ids() {
		if h.guesses.has(id) {
			guessed = append(guessed, id)
		}
	}

	return hubState{
		Snapshot: h.snapshot(),
		Guessed:  guessed,
		Pending:  h.pending != 0,
		Scored:   h.scored,
	}
}

func (h *Hub) broadcast(msg any) {
	for _, id := range h.roster.ids() {
		if c, ok := h.clients[id]; ok {
			c.deliver(msg)
		}
	}
}

func (h *Hub) active() bool {
	return h.currentRound >= 1 && h.currentRound <= h.settings.Rounds
}

// handleJoin adds c unless c has changed rooms since the join was sent,
// in which case the join is stale and dropped.
func (h *Hub) handleJoin(c *Client, from *Hub) {
	if c.room() != from {
		h.log.Debug().Str("player", c.Name).Msg("ignoring superseded join")
		return
	}
	if h.roster.len() >= MaxPlayers {
		c.sendError(ErrRoomFull)
		return
	}
	if h.currentRound > 0 {
		c.sendError(ErrAlreadyStarted)
		return
	}

	// Same display name means a client resyncing after a reload.
	if h.roster.hasName(c.Name) {
		c.deliver(LobbyCreatedMessage{Type: TypeLobbyCreated, Snapshot: h.snapshot()})
		return
	}

	if !c.moveRoom(from, h) {
		h.log.Debug().Str("player", c.Name).Msg("ignoring superseded join")
		return
	}

	h.roster.add(Player{ID: c.ID, Name: c.Name})
	h.clients[c.ID] = c

	if from != nil && from != h {
		go from.leave(c)
	}

	h.log.Info().Str("player", c.Name).Int("players", h.roster.len()).Msg("player joined")

	c.deliver(LobbyCreatedMessage{Type: TypeLobbyCreated, Snapshot: h.snapshot()})
	h.broadcast(PlayersMessage{Type: TypePlayerJoined, Players: h.roster.list()})
}

func (h *Hub) handleToggleReady(c *Client) {
	if h.currentRound != 0 {
		return
	}

	p, ok := h.roster.get(c.ID)
	if !ok {
		return
	}
	p.Ready = !p.Ready

	h.broadcast(PlayersMessage{Type: TypePlayerReady, Players: h.roster.list()})
}

func (h *Hub) handleStart(c *Client) {
	if c.ID != h.host {
		h.log.Debug().Str("player", c.Name).Msg("ignoring start from non-host")
		return
	}
	if h.currentRound != 0 {
		c.sendError(ErrAlreadyStarted)
		return
	}
	if h.roster.len() > 1 && !h.roster.allReady() {
		c.sendError(ErrNotAllReady)
		return
	}

	h.start()
}

func (h *Hub) start() {
	h.currentRound = 1

	h.log.Info().Int("players", h.roster.len()).Msg("game started")

	h.lookup()
}

// lookup resolves the next target off the hub goroutine. The result is
// only committed if it is still the latest lookup when it arrives.
func (h *Hub) lookup() {
	h.seq++
	h.pending = h.seq
	h.location = nil
	h.scored = false
	h.guesses.reset()

	seq, mode := h.seq, h.settings.Mode

	go func() {
		p := h.locator.Locate(h.ctx, mode)

		select {
		case h.located <- locationResult{seq: seq, point: p}:
		case <-h.done:
		}
	}()
}

func (h *Hub) handleLocated(res locationResult) {
	if res.seq != h.pending {
		h.log.Debug().Int("seq", res.seq).Msg("discarding stale location")
		return
	}
	h.pending = 0

	if !h.active() {
		return
	}

	loc := res.point
	h.location = &loc

	h.log.Debug().
		Int("round", h.currentRound).
		Float64("lat", loc.Lat).
		Float64("lng", loc.Lng).
		Msg("round location resolved")

	if h.currentRound == 1 {
		h.broadcast(GameStartedMessage{Type: TypeGameStarted, Snapshot: h.snapshot()})
		return
	}

	h.broadcast(NewLocationMessage{
		Type:         TypeNewLocation,
		Location:     loc,
		CurrentRound: h.currentRound,
	})
}

func (h *Hub) handleGuess(c *Client, g geo.Point) {
	if !h.active() || h.location == nil || h.scored {
		return
	}

	if !h.guesses.submit(&h.roster, c.ID, g) {
		return
	}

	h.scoreIfComplete()
}

// scoreIfComplete scores the round once every current member has guessed.
func (h *Hub) scoreIfComplete() {
	if !h.active() || h.location == nil || h.scored {
		return
	}

	members := h.roster.ids()
	if !h.guesses.complete(members) {
		return
	}

	results := h.guesses.score(members, *h.location)
	for id, res := range results {
		if p, ok := h.roster.get(id); ok {
			p.Score += res.Score
		}
	}

	h.scored = true

	h.log.Info().Int("round", h.currentRound).Int("guesses", len(results)).Msg("round scored")

	h.broadcast(RoundResultMessage{
		Type:           TypeRoundResult,
		Results:        results,
		Players:        h.roster.list(),
		ActualLocation: *h.location,
	})

	h.guesses.reset()
}

func (h *Hub) handleNextRound(c *Client) {
	if c.ID != h.host {
		h.log.Debug().Str("player", c.Name).Msg("ignoring next round from non-host")
		return
	}
	if !h.active() || h.pending != 0 {
		return
	}

	h.currentRound++

	if h.currentRound > h.settings.Rounds {
		h.finish()
		return
	}

	h.lookup()
}

func (h *Hub) finish() {
	players := h.roster.list()

	for _, p := range players {
		if p.Name != "" && p.Score > 0 {
			go h.record(p.Name, p.Score)
		}
	}

	h.log.Info().Int("players", len(players)).Msg("game over")

	h.broadcast(GameOverMessage{Type: TypeGameOver, FinalScores: players})
}

// record runs detached from the room; a failure loses the increment.
func (h *Hub) record(name string, points int) {
	if h.recorder == nil {
		return
	}

	if err := h.recorder.AddScore(context.Background(), name, points); err != nil {
		h.log.Error().Err(err).Str("player", name).Int("points", points).Msg("failed to save score")
	}
}

func (h *Hub) handleLeave(c *Client) {
	if h.clients[c.ID] != c {
		return
	}
	if !h.roster.remove(c.ID) {
		return
	}

	delete(h.clients, c.ID)
	h.guesses.drop(c.ID)
	c.leaveRoom(h)

	h.log.Info().Str("player", c.Name).Int("players", h.roster.len()).Msg("player left")

	if h.roster.len() == 0 {
		return
	}

	if c.ID == h.host {
		h.host = h.roster.first()
		if p, ok := h.roster.get(h.host); ok {
			h.log.Info().Str("player", p.Name).Msg("host left, migrated host")
		}
	}

	h.broadcast(PlayerLeftMessage{
		Type:    TypePlayerLeft,
		Players: h.roster.list(),
		NewHost: h.host,
	})

	h.scoreIfComplete()
}
