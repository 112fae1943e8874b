package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Seednode/streetguess/internal/auth"
	"github.com/Seednode/streetguess/internal/locations"
	"github.com/Seednode/streetguess/internal/scores"
	"github.com/Seednode/streetguess/internal/session"
)

const (
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "kMGTPE"[exp])
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("streetguess v" + releaseVersion + "\n"))
		if err != nil {
			report(errs, err)

			return
		}

		logf("SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// report hands err to the error logger without ever blocking a handler;
// errors arriving while the buffer is full or after shutdown are dropped.
func report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// drainErrors logs handler write failures until ctx ends.
func drainErrors(ctx context.Context, errs <-chan error) {
	for {
		select {
		case err := <-errs:
			log.Warn().Err(err).Msg("write failed")
		case <-ctx.Done():
			return
		}
	}
}

// newLocator builds the location selector. Without a maps api key, random
// locations are accepted on the boundary check alone.
func newLocator(cfg *Config) (*locations.Selector, error) {
	hotspots, err := locations.LoadHotspots()
	if err != nil {
		return nil, err
	}

	boundary, err := locations.LoadBoundary()
	if err != nil {
		return nil, err
	}

	sampler := &locations.Sampler{
		MaxAttempts: cfg.maxAttempts,
		Fallback:    hotspots[0].Point,
		Bounds:      locations.CityBounds,
		Boundary:    boundary,
		Log:         log.With().Str("component", "sampler").Logger(),
	}

	if cfg.mapsAPIKey != "" {
		sampler.Oracle = &locations.StreetView{
			Key:     cfg.mapsAPIKey,
			Client:  &http.Client{Timeout: timeout},
			Limiter: rate.NewLimiter(rate.Limit(cfg.oracleRate), 1),
		}
	} else {
		log.Warn().Msg("no maps api key configured; random locations are not checked for imagery")
	}

	return locations.NewSelector(hotspots, sampler, nil)
}

func newRouter(cfg *Config, gm *session.GameManager, store *scores.Store, gate *auth.Gate, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, gm, gate))

	mux.GET(cfg.prefix+"/api/leaderboard", serveLeaderboard(cfg, store, errs))

	mux.GET(cfg.prefix+"/room/:code", serveRoom(cfg, gm, errs))

	mux.GET(cfg.prefix+"/room/:code/qr", serveRoomQR(cfg, gm, errs))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log.Info().Str("version", releaseVersion).Msg("START: streetguess")

	store, err := scores.Open(ctx, cfg.database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	locator, err := newLocator(cfg)
	if err != nil {
		return fmt.Errorf("load locations: %w", err)
	}

	gm := session.NewGameManager(session.Options{
		Locator:     locator,
		Recorder:    store,
		Log:         log.With().Str("component", "session").Logger(),
		IdleTimeout: cfg.sessionTimeout,
	})
	defer gm.Close()

	gate := auth.NewGate(cfg.jwtSecret, store)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	errs := make(chan error, 64)
	go drainErrors(ctx, errs)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, gm, store, gate, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info().Msgf("SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	log.Info().Msg("STOP: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
