// Package httpapi serves the viewer's query surface: live status,
// recent events, recent trips, and the dashboard page. Every handler
// recomputes from the logs via the status service; the server itself
// holds no state.
package httpapi

import (
	"context"
	"embed"
	"log"
	"net/http"
	"time"

	"github.com/transitpi/farebox/internal/farebox/service"
)

//go:embed static/index.html
var staticFS embed.FS

type Dependencies struct {
	Logger          *log.Logger
	Addr            string
	Status          *service.StatusService
	MaxRecentEvents int
	MaxRecentTrips  int
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	status     *service.StatusService
	maxEvents  int
	maxTrips   int
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	maxEvents := d.MaxRecentEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	maxTrips := d.MaxRecentTrips
	if maxTrips <= 0 {
		maxTrips = 100
	}

	s := &Server{
		logger:    d.Logger,
		mux:       mux,
		status:    d.Status,
		maxEvents: maxEvents,
		maxTrips:  maxTrips,
	}

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/trips", s.handleTrips)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.status.Status(r.Context())
	if err != nil {
		s.logger.Printf("status error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, statusToAPI(report))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.status.RecentEvents(r.Context(), s.maxEvents)
	if err != nil {
		s.logger.Printf("events error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, eventsToAPI(events))
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	report, err := s.status.RecentTrips(r.Context(), s.maxTrips)
	if err != nil {
		s.logger.Printf("trips error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, tripsToAPI(report))
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "dashboard unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
