package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/streetguess/internal/auth"
	"github.com/Seednode/streetguess/internal/geo"
	"github.com/Seednode/streetguess/internal/locations"
	"github.com/Seednode/streetguess/internal/scores"
	"github.com/Seednode/streetguess/internal/session"
)

type fixedLocator geo.Point

func (f fixedLocator) Locate(context.Context, locations.Mode) geo.Point {
	return geo.Point(f)
}

type testServer struct {
	*httptest.Server
	store *scores.Store
	gate  *auth.Gate
	gm    *session.GameManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := scores.Open(context.Background(), filepath.Join(t.TempDir(), "scores.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gm := session.NewGameManager(session.Options{
		Locator:  fixedLocator{Lat: 51.5177, Lng: 7.0857},
		Recorder: store,
		Log:      zerolog.Nop(),
	})
	t.Cleanup(gm.Close)

	cfg := validConfig()
	gate := auth.NewGate(cfg.jwtSecret, store)

	errs := make(chan error, 64)
	srv := httptest.NewServer(newRouter(cfg, gm, store, gate, errs))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: store, gate: gate, gm: gm}
}

func (s *testServer) token(t *testing.T, username string) string {
	t.Helper()

	u, err := s.store.EnsureUser(context.Background(), username)
	require.NoError(t, err)

	token, err := s.gate.Issue(u.ID, u.Username, time.Hour)
	require.NoError(t, err)

	return token
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?token=" + token

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))

	return event
}

func expectEvent(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()

	event := readEvent(t, conn)
	require.Equal(t, kind, event["type"], "event: %v", event)

	return event
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}

	return resp.StatusCode
}

func TestWebsocketRequiresToken(t *testing.T) {
	s := newTestServer(t)
	base := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"

	for _, url := range []string{base, base + "?token=garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	}

	assert.Zero(t, s.gm.Len())
}

func TestSingleplayerOverWebsocket(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, s.token(t, "alice"))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":     "createRoom",
		"settings": map[string]any{"type": "singleplayer", "mode": "hotspot", "rounds": 1},
	}))

	lobby := expectEvent(t, conn, session.TypeLobbyCreated)
	code, _ := lobby["code"].(string)
	require.Len(t, code, session.CodeLength)
	assert.EqualValues(t, session.SnapshotVersion, lobby["version"])

	started := expectEvent(t, conn, session.TypeGameStarted)
	assert.EqualValues(t, 1, started["currentRound"])
	require.Contains(t, started, "location")

	var snap session.Snapshot
	assert.Equal(t, http.StatusOK, getJSON(t, s.URL+"/room/"+strings.ToLower(code), &snap))
	assert.Equal(t, code, snap.Code)
	assert.Equal(t, 1, snap.CurrentRound)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "alice", snap.Players[0].Name)

	resp, err := http.Get(s.URL + "/room/" + code + "/qr")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_ = resp.Body.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":  "makeGuess",
		"code":  code,
		"guess": map[string]any{"lat": 51.5177, "lng": 7.0857},
	}))

	result := expectEvent(t, conn, session.TypeRoundResult)
	results, _ := result["results"].(map[string]any)
	require.Len(t, results, 1)
	for _, r := range results {
		assert.EqualValues(t, geo.MaxScore, r.(map[string]any)["score"])
		assert.Equal(t, "0.00", r.(map[string]any)["distance"])
	}

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "requestNextRound", "code": code}))

	over := expectEvent(t, conn, session.TypeGameOver)
	final, _ := over["finalScores"].([]any)
	require.Len(t, final, 1)

	assert.Eventually(t, func() bool {
		var top []scores.User
		if getJSON(t, s.URL+"/api/leaderboard", &top) != http.StatusOK || len(top) != 1 {
			return false
		}
		return top[0].Username == "alice" && top[0].TotalScore == geo.MaxScore
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJoinUnknownRoomOverWebsocket(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, s.token(t, "bob"))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "joinRoom", "code": "ZZZZ"}))

	event := expectEvent(t, conn, session.TypeError)
	assert.Equal(t, session.ErrRoomNotFound.Error(), event["message"])
}

func TestMalformedMessagesAreIgnored(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, s.token(t, "carol"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "joinRoom", "code": "ZZZZ"}))

	expectEvent(t, conn, session.TypeError)
}

func TestDisconnectDestroysRoom(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, s.token(t, "dave"))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":     "createRoom",
		"settings": map[string]any{"type": "multiplayer", "mode": "hotspot", "rounds": 3},
	}))
	expectEvent(t, conn, session.TypeLobbyCreated)
	require.Equal(t, 1, s.gm.Len())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return s.gm.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRoomNotFound(t *testing.T) {
	s := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, s.URL+"/room/ZZZZ", &body))
	assert.Equal(t, session.ErrRoomNotFound.Error(), body["error"])

	assert.Equal(t, http.StatusNotFound, getJSON(t, s.URL+"/room/ZZZZ/qr", nil))
}

func TestLeaderboardOrder(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for name, points := range map[string]int{"alice": 100, "bob": 300, "carol": 200} {
		_, err := s.store.EnsureUser(ctx, name)
		require.NoError(t, err)
		require.NoError(t, s.store.AddScore(ctx, name, points))
	}

	var top []scores.User
	require.Equal(t, http.StatusOK, getJSON(t, s.URL+"/api/leaderboard", &top))
	require.Len(t, top, 3)
	assert.Equal(t, []string{"bob", "carol", "alice"}, []string{top[0].Username, top[1].Username, top[2].Username})
}

func TestPlainEndpoints(t *testing.T) {
	s := newTestServer(t)

	for path, want := range map[string]string{
		"/healthz": "Ok\n",
		"/version": "streetguess v" + releaseVersion + "\n",
	} {
		resp, err := http.Get(s.URL + path)
		require.NoError(t, err)

		buf := new(strings.Builder)
		_, err = io.Copy(buf, resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, buf.String(), path)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"), path)
	}
}

func TestAuthStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, authStatus(auth.ErrNoToken))
	assert.Equal(t, http.StatusUnauthorized, authStatus(auth.ErrInvalidToken))
	assert.Equal(t, http.StatusUnauthorized, authStatus(auth.ErrUnknownUser))
	assert.Equal(t, http.StatusInternalServerError, authStatus(context.Canceled))
}

func TestMessageLimiter(t *testing.T) {
	l := messageLimiter(2)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	assert.Equal(t, 1, messageLimiter(0.5).Burst())
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", realIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7:1234", realIP(r))

	r.Header.Set("CF-Connecting-IP", "2001:db8::1")
	assert.Equal(t, "[2001:db8::1]:1234", realIP(r))
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.0 MB", humanReadableSize(2_000_000))
}

func TestProfileHandlers(t *testing.T) {
	cfg := validConfig()
	cfg.profile = true

	s := newTestServer(t)
	srv := httptest.NewServer(newRouter(cfg, s.gm, s.store, s.gate, make(chan error, 1)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/pprof/cmdline")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.URL + "/debug/pprof/cmdline")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReportNeverBlocks(t *testing.T) {
	errs := make(chan error, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		report(errs, io.ErrUnexpectedEOF)
		report(errs, io.ErrShortWrite)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("report blocked on a full channel")
	}

	assert.ErrorIs(t, <-errs, io.ErrUnexpectedEOF)
}

func TestHandlersSurviveStoppedErrorLogger(t *testing.T) {
	s := newTestServer(t)
	cfg := validConfig()

	errs := make(chan error)
	srv := httptest.NewServer(newRouter(cfg, s.gm, s.store, s.gate, errs))
	defer srv.Close()

	require.NoError(t, s.store.Close())

	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(srv.URL + "/api/leaderboard")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
