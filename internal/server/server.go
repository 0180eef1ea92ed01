package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/darkscan/docs/swagger" // registers the API doc
	"github.com/raysh454/darkscan/internal/app"
	"github.com/raysh454/darkscan/internal/history"
	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/metrics"
	"github.com/raysh454/darkscan/internal/model"
)

// Server is the HTTP + WebSocket API surface for darkscan.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer wraps an orchestrator owned by the caller.
func NewServer(cfg Config, orch *app.Orchestrator) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		router:       chi.NewRouter(),
		logger:       logger,
		upgrader: websocket.Upgrader{
			// Browser extensions and local dashboards connect from
			// arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/sessions", s.optionsHandler("GET, POST"))
	r.Options("/sessions/{id}", s.optionsHandler("DELETE"))
	r.Options("/sessions/{id}/scan", s.optionsHandler("POST"))
	r.Options("/sessions/{id}/patterns", s.optionsHandler("GET"))
	r.Options("/sessions/{id}/inject-ui", s.optionsHandler("POST"))
	r.Options("/history", s.optionsHandler("GET, DELETE"))
	r.Options("/history/{id}", s.optionsHandler("GET"))
	r.Options("/settings", s.optionsHandler("GET, PUT"))
	r.Options("/badge", s.optionsHandler("GET, DELETE"))

	// Sessions
	r.Post("/sessions", s.handleCreateSession)
	r.Get("/sessions", s.handleListSessions)
	r.Delete("/sessions/{id}", s.handleDeleteSession)
	r.Post("/sessions/{id}/scan", s.handleScan)
	r.Get("/sessions/{id}/patterns", s.handleGetPatterns)
	r.Post("/sessions/{id}/inject-ui", s.handleInjectUI)

	// Session events
	r.Get("/ws/sessions/{id}/events", s.handleEventsWS)

	// History, badge and settings
	r.Get("/history", s.handleListHistory)
	r.Delete("/history", s.handleClearHistory)
	r.Get("/history/{id}", s.handleGetHistoryEntry)
	r.Get("/badge", s.handleGetBadge)
	r.Delete("/badge", s.handleResetBadge)
	r.Get("/settings", s.handleGetSettings)
	r.Put("/settings", s.handlePutSettings)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // scans and event streams run long
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps orchestrator errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrSessionNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case app.IsUnscannable(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrUnknownBackend), errors.Is(err, history.ErrUnknownSetting):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrOrchestratorDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// --- HTTP handlers ---

// Sessions

// handleCreateSession godoc
// @Summary Open a detection session
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "Page to open"
// @Success 201 {object} app.Info
// @Failure 422 {object} ErrorResponse
// @Router /sessions [post]
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding create session body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, err := s.orchestrator.CreateSession(r.Context(), body.URL, body.Backend)
	if err != nil {
		s.logger.Warn("creating session", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("created session", logging.Field{Key: "session", Value: sess.ID()}, logging.Field{Key: "url", Value: sess.URL()})
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list := s.orchestrator.Sessions()
	s.logger.Info("listed sessions", logging.Field{Key: "count", Value: len(list)})
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orchestrator.DeleteSession(id); err != nil {
		status := statusFor(err)
		if status != http.StatusNotFound {
			s.logger.Warn("closing session", logging.Field{Key: "error", Value: err.Error()})
		}
		writeError(w, status, err.Error())
		return
	}
	s.logger.Info("closed session", logging.Field{Key: "session", Value: id})
	w.WriteHeader(http.StatusNoContent)
}

// handleScan godoc
// @Summary Run a full scan
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} ScanResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ScanResponse
// @Router /sessions/{id}/scan [post]
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.orchestrator.RunCompleteScan(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("scan failed", logging.Field{Key: "session", Value: id}, logging.Field{Key: "error", Value: err.Error()})
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, ScanResponse{Success: false, Patterns: []model.Pattern{}, Error: err.Error()})
		return
	}

	patterns := res.Patterns
	if patterns == nil {
		patterns = []model.Pattern{}
	}
	s.logger.Info("scan complete", logging.Field{Key: "session", Value: id}, logging.Field{Key: "count", Value: len(patterns)}, logging.Field{Key: "skipped", Value: res.Skipped})
	writeJSON(w, http.StatusOK, ScanResponse{Success: true, Count: len(patterns), Patterns: patterns, Skipped: res.Skipped})
}

func (s *Server) handleGetPatterns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.orchestrator.GetPatterns(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleInjectUI(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orchestrator.InjectUI(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}
	entries, err := s.orchestrator.History(r.Context(), limit)
	if err != nil {
		s.logger.Warn("listing history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("listed history", logging.Field{Key: "count", Value: len(entries)})
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid history id")
		return
	}
	entry, err := s.orchestrator.HistoryEntry(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.ClearHistory(r.Context()); err != nil {
		s.logger.Warn("clearing history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBadge(w http.ResponseWriter, r *http.Request) {
	n, err := s.orchestrator.Badge(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, BadgeResponse{Count: n})
}

func (s *Server) handleResetBadge(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.ResetBadge(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Settings

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Settings(r.Context()))
}

// handlePutSettings applies a partial update. Unknown keys reject the
// whole request.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	for key := range body {
		if !slices.Contains(history.SettingKeys, key) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", history.ErrUnknownSetting, key))
			return
		}
	}

	current := s.orchestrator.Settings(r.Context())
	for _, key := range history.SettingKeys {
		v, ok := body[key]
		if !ok {
			continue
		}
		st, err := s.orchestrator.SetSetting(r.Context(), key, fmt.Sprint(v))
		if err != nil {
			s.logger.Warn("updating setting", logging.Field{Key: "key", Value: key}, logging.Field{Key: "error", Value: err.Error()})
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		current = st
	}
	s.logger.Info("updated settings")
	writeJSON(w, http.StatusOK, current)
}

// WebSockets

// handleEventsWS streams a session's events until the session closes or
// the client disconnects.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, cancel, err := s.orchestrator.Subscribe(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	// The read loop only detects disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.logger.Info("event stream opened", logging.Field{Key: "session", Value: id})
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
