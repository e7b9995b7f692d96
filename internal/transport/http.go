// Package transport provides the status HTTP API and live WebSocket stream.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gateway-fm/jointsim/internal/report"
	"github.com/gateway-fm/jointsim/internal/sim"
	"github.com/gateway-fm/jointsim/pkg/types"
)

// StatusAPI is the read-only view of a run served over HTTP.
type StatusAPI interface {
	Snapshot() types.RunMetrics
	Series() types.SeriesResponse
}

// Server serves the status API.
type Server struct {
	api       StatusAPI
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	startTime time.Time
	wsServer  *WebSocketServer

	corsAllowedOrigins []string // Parsed list of allowed origins
	corsAllowAll       bool     // True if "*" or empty (allow all origins)
}

// NewServer creates a status server. A nil gatherer serves the default Prometheus registry.
func NewServer(api StatusAPI, gatherer prometheus.Gatherer, logger *slog.Logger, corsAllowedOrigins string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		api:       api,
		gatherer:  gatherer,
		logger:    logger,
		startTime: time.Now(),
	}
	s.wsServer = NewWebSocketServer(api, logger, s.wsOriginAllowed)

	origins := strings.TrimSpace(corsAllowedOrigins)
	if origins == "" || origins == "*" {
		s.corsAllowAll = true
	} else {
		s.corsAllowedOrigins = strings.Split(origins, ",")
		for i, o := range s.corsAllowedOrigins {
			s.corsAllowedOrigins[i] = strings.TrimSpace(o)
		}
	}

	return s
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.corsMiddleware)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/series", s.handleSeries).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/series.csv", s.handleSeriesCSV).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/ws", s.wsServer.Handler())

	r.HandleFunc("/ws", s.wsServer.Handler())
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "Not found", http.StatusNotFound)
	})

	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wsServer.Start()
	defer s.wsServer.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if s.corsAllowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range s.corsAllowedOrigins {
				if o == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// wsOriginAllowed admits explicitly listed origins, the status server's own
// host and loopback pages. A "*" CORS setting does not open the stream to
// arbitrary sites.
func (s *Server) wsOriginAllowed(r *http.Request) bool {
	if sameHost(r) {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.corsAllowedOrigins {
		if o == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.api.Snapshot())
}

func (s *Server) handleSeries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.api.Series())
}

func (s *Server) handleSeriesCSV(w http.ResponseWriter, _ *http.Request) {
	points := s.api.Series().Points
	samples := make([]sim.Sample, len(points))
	for i, p := range points {
		samples[i] = sim.Sample{Attempts: p.Attempts, Successes: p.Successes, Ratio: p.Ratio}
	}

	w.Header().Set("Content-Type", "text/csv")
	if err := report.WriteCSV(w, samples); err != nil {
		s.logger.Debug("failed to write series CSV", slog.String("error", err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, types.HealthResponse{
		Status: "ok",
		RunID:  s.api.Snapshot().RunID,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
