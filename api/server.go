// Package api exposes read-only book state over HTTP and streams
// events over a websocket. Every book read goes through the engine's
// lane queries; the server never touches book state directly.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"fenrir/engine"
)

const queryTimeout = 2 * time.Second

var errBadLevels = errors.New("levels must be a positive integer")

type Server struct {
	eng    *engine.Engine
	hub    *Hub
	log    *zap.Logger
	router *mux.Router
	http   *http.Server
}

func NewServer(eng *engine.Engine, hub *Hub, log *zap.Logger) *Server {
	s := &Server{
		eng:    eng,
		hub:    hub,
		log:    log.Named("api"),
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Symbols carry a slash ("BTC/USDC"), so they travel URL-encoded
	// and the router must match the raw path.
	s.router.UseEncodedPath()

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/books", s.handleBooks).Methods(http.MethodGet)
	v1.HandleFunc("/books/{symbol}", s.handleBook).Methods(http.MethodGet)
	v1.HandleFunc("/books/{symbol}/depth", s.handleDepth).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(s.router)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.log.Info("listening", zap.String("addr", addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	summaries, err := s.eng.Summaries(ctx)
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	out := make([]summaryResponse, len(summaries))
	for i, sum := range summaries {
		out[i] = toSummaryResponse(sum)
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	symbol, err := pathSymbol(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	sum, err := s.eng.Summary(ctx, symbol)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respond(w, http.StatusOK, toSummaryResponse(sum))
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	symbol, err := pathSymbol(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	levels := 20
	if raw := r.URL.Query().Get("levels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, errBadLevels)
			return
		}
		levels = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	bids, asks, err := s.eng.DepthSnapshot(ctx, symbol, levels)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respond(w, http.StatusOK, depthResponse{
		Symbol: symbol,
		Bids:   toLevelResponses(bids),
		Asks:   toLevelResponses(asks),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, err error) {
	s.respond(w, code, errorResponse{Error: err.Error()})
}

// pathSymbol decodes the symbol path variable, which arrives
// percent-encoded under UseEncodedPath.
func pathSymbol(r *http.Request) (string, error) {
	return url.PathUnescape(mux.Vars(r)["symbol"])
}
