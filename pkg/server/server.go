package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"

	"github.com/pvpcnext/pvpcnext/pkg/controller"
	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/storage"
)

// shutdownGrace bounds how long in-flight requests get after ctx is done.
const shutdownGrace = 5 * time.Second

// Server exposes the tariff state, holidays and prices over HTTP.
type Server struct {
	coord   *controller.Coordinator
	storage storage.Database

	addr       string
	serverName string
	now        func() time.Time
}

// Configured registers the http-listen flag and returns a Server for coord.
// PORT, as set by Cloud Run, changes the default port and K_REVISION is
// reported in the Server header.
func Configured(coord *controller.Coordinator, db storage.Database) *Server {
	srv := New(coord, db)
	if revision := os.Getenv("K_REVISION"); revision != "" {
		srv.serverName = revision
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := lflag.String("http-listen", ":"+port, "Address the HTTP API listens on")

	lflag.Do(func() {
		srv.addr = *addr
	})
	return srv
}

// New creates a Server without registering flags.
func New(coord *controller.Coordinator, db storage.Database) *Server {
	if db == nil {
		db = storage.None{}
	}
	return &Server{
		coord:      coord,
		storage:    db,
		serverName: "pvpcnext",
		now:        time.Now,
	}
}

func (s *Server) setupHandler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/period", s.handlePeriod)
	api.HandleFunc("GET /api/holidays", s.handleHolidays)
	api.HandleFunc("GET /api/prices/next", s.handleNextPrice)
	api.HandleFunc("GET /api/prices/better", s.handleBetterPrice)
	api.HandleFunc("GET /api/history/prices", s.handleHistoryPrices)
	api.HandleFunc("GET /api/settings", s.handleGetSettings)
	api.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	api.HandleFunc("POST /api/refresh", s.handleRefresh)

	root := http.NewServeMux()
	root.Handle("/api/", api)
	root.HandleFunc("/healthz", s.handleHealthz)

	var h http.Handler = root
	h = withStandardHeaders(h)
	h = gziphandler.GzipHandler(h)
	return s.withServerName(h)
}

// Run serves the API until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.setupHandler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		// requests keep ctx's values but outlive its cancellation while draining
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Ctx(ctx).InfoContext(ctx, "http api listening", slog.String("addr", s.addr))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http api failed: %w", err)
	case <-ctx.Done():
	}

	log.Ctx(ctx).InfoContext(ctx, "http api draining", slog.Duration("grace", shutdownGrace))
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http api shutdown: %w", err)
	}
	return nil
}

// writeStatusJSON writes v as the JSON body with the given status code. A
// failed write aborts the handler since the client is gone.
func writeStatusJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", slog.Int("code", code), slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	writeStatusJSON(w, http.StatusOK, v)
}

type errorRes struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeStatusJSON(w, code, errorRes{Error: msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) withServerName(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	name := s.serverName
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", name)
		next.ServeHTTP(w, r)
	})
}

var standardHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "no-referrer",
}

func withStandardHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range standardHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
