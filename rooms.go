package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/streetguess/internal/scores"
	"github.com/Seednode/streetguess/internal/session"
)

const (
	leaderboardSize = 10
	qrSize          = 320
)

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any, errs chan<- error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		report(errs, err)
	}
}

func serveLeaderboard(cfg *Config, store *scores.Store, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		top, err := store.Leaderboard(r.Context(), leaderboardSize)
		if err != nil {
			report(errs, err)
			writeJSON(cfg, w, http.StatusInternalServerError, map[string]string{"error": "leaderboard unavailable"}, errs)
			return
		}

		writeJSON(cfg, w, http.StatusOK, top, errs)

		logf("SERVE: Leaderboard (%d entries) to %s in %s",
			len(top),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// lookupRoom resolves :code to a live room, writing a 404 when absent.
func lookupRoom(cfg *Config, gm *session.GameManager, w http.ResponseWriter, ps httprouter.Params, errs chan<- error) (*session.Hub, bool) {
	h, ok := gm.Get(session.NormalizeCode(ps.ByName("code")))
	if !ok {
		writeJSON(cfg, w, http.StatusNotFound, map[string]string{"error": session.ErrRoomNotFound.Error()}, errs)
		return nil, false
	}
	return h, true
}

func serveRoom(cfg *Config, gm *session.GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		h, ok := lookupRoom(cfg, gm, w, ps, errs)
		if !ok {
			return
		}

		snap, err := h.Snapshot(r.Context())
		if errors.Is(err, session.ErrRoomNotFound) {
			writeJSON(cfg, w, http.StatusNotFound, map[string]string{"error": err.Error()}, errs)
			return
		}
		if err != nil {
			report(errs, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, snap, errs)
	}
}

// roomURL derives the public room URL, respecting TLS and X-Forwarded-Proto.
func roomURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")
}

func serveRoomQR(cfg *Config, gm *session.GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if _, ok := lookupRoom(cfg, gm, w, ps, errs); !ok {
			return
		}

		png, err := qrcode.Encode(roomURL(r), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			report(errs, err)
		}
	}
}
