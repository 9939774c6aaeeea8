package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/suryavirkapur/DrivinData/internal/db"
	"github.com/suryavirkapur/DrivinData/internal/httputil"
	"github.com/suryavirkapur/DrivinData/internal/trip"
	"github.com/suryavirkapur/DrivinData/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the recorder and the trip database over HTTP. Speeds are
// stored in m/s and converted to the configured display unit on the way out.
type Server struct {
	rec   *trip.Recorder
	db    *db.DB
	units string
	hub   *LiveHub
}

func NewServer(rec *trip.Recorder, db *db.DB, displayUnits string, hub *LiveHub) *Server {
	return &Server{
		rec:   rec,
		db:    db,
		units: displayUnits,
		hub:   hub,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session/start", s.startSession)
	mux.HandleFunc("/api/session/stop", s.stopSession)
	mux.HandleFunc("/api/session", s.showCurrentSession)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/", s.sessionSubresource)
	mux.HandleFunc("/api/speed", s.showSpeed)
	mux.HandleFunc("/api/config", s.showConfig)
	if s.hub != nil {
		mux.HandleFunc("/api/live", s.hub.HandleWS)
	}
	return mux
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	id, err := s.rec.Start(r.Context())
	if err != nil {
		if errors.Is(err, trip.ErrAlreadyRecording) {
			httputil.WriteJSONError(w, http.StatusConflict, "recording already in progress")
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to start session: %v", err))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]int64{"session_id": id})
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	id := s.rec.CurrentSessionID()
	if err := s.rec.Stop(r.Context()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to stop session: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]int64{"session_id": id})
}

// showCurrentSession reports the recorder state and, when recording, the
// open session row.
func (s *Server) showCurrentSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	resp := struct {
		Recording bool        `json:"recording"`
		Session   *db.Session `json:"session,omitempty"`
	}{Recording: s.rec.Recording()}

	if id := s.rec.CurrentSessionID(); id != 0 {
		session, err := s.db.Session(id)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to load session: %v", err))
			return
		}
		resp.Session = session
	}

	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.Sessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve sessions: %v", err))
		return
	}

	httputil.WriteJSONOK(w, sessions)
}

// sessionSubresource routes /api/sessions/{id}/{telemetry,summary,chart}.
func (s *Server) sessionSubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id < 1 {
		httputil.BadRequest(w, "invalid session id")
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "telemetry":
		s.showTelemetry(w, id)
	case "summary":
		s.showSummary(w, id)
	case "chart":
		s.showChart(w, id)
	default:
		httputil.NotFound(w, "unknown session resource")
	}
}

func (s *Server) showTelemetry(w http.ResponseWriter, id int64) {
	if _, err := s.db.Session(id); err != nil {
		s.writeSessionError(w, id, err)
		return
	}

	rows, err := s.db.TelemetryForSession(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve telemetry: %v", err))
		return
	}

	for i := range rows {
		if rows[i].Speed != nil {
			converted := units.ConvertSpeed(*rows[i].Speed, s.units)
			rows[i].Speed = &converted
		}
	}

	httputil.WriteJSONOK(w, rows)
}

func (s *Server) showSummary(w http.ResponseWriter, id int64) {
	summary, err := s.db.SummarizeSession(id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}

	if summary.AvgSpeed != nil {
		converted := units.ConvertSpeed(*summary.AvgSpeed, s.units)
		summary.AvgSpeed = &converted
	}
	if summary.MaxSpeed != nil {
		converted := units.ConvertSpeed(*summary.MaxSpeed, s.units)
		summary.MaxSpeed = &converted
	}

	httputil.WriteJSONOK(w, summary)
}

func (s *Server) writeSessionError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, fmt.Sprintf("session %d not found", id))
		return
	}
	httputil.InternalServerError(w, fmt.Sprintf("failed to load session %d: %v", id, err))
}

// showSpeed reports the most recent speed reading in the configured display
// unit, for a dashboard readout.
func (s *Server) showSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	resp := struct {
		Speed *float64 `json:"speed"`
		Units string   `json:"units"`
	}{Units: s.units}

	if pos := s.rec.LastPosition(); pos != nil && pos.Speed != nil {
		converted := units.ConvertSpeed(*pos.Speed, s.units)
		resp.Speed = &converted
	}

	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":     s.units,
		"recording": s.rec.Recording(),
	})
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
