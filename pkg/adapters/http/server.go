package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/tempo"
	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/internal/presentation/graph"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/observability"
	"github.com/aretw0/tempo/pkg/playback"
	"github.com/aretw0/tempo/pkg/session"
	"github.com/aretw0/tempo/pkg/workspace"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// maxBodyBytes bounds request bodies; inputs are small by construction.
const maxBodyBytes = 1 << 20

// Server exposes session playback over HTTP.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager

	spec    *openapi3.T
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts /metrics and counts dropped SSE clients.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStreams replaces the default StreamManager.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// NewServer builds a Server over sessions.
func NewServer(sessions *session.Manager, opts ...Option) (*Server, error) {
	doc, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	s := &Server{
		Sessions: sessions,
		spec:     doc,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		streamOpts := []StreamOption{WithStreamLogger(s.logger)}
		if s.metrics != nil {
			streamOpts = append(streamOpts, WithDropHook(func() { s.metrics.Dropped("sse") }))
		}
		s.Streams = NewStreamManager(streamOpts...)
	}
	return s, nil
}

// NewHandler creates the HTTP handler for sessions.
func NewHandler(sessions *session.Manager, opts ...Option) (http.Handler, error) {
	s, err := NewServer(sessions, opts...)
	if err != nil {
		return nil, err
	}
	return s.Handler(), nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/algorithms", s.ListAlgorithms)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.GetSession)
		r.Delete("/", s.DeleteSession)
		r.Post("/start", s.StartRun)
		r.Put("/speed", s.SetSpeed)
		r.Get("/history", s.GetHistory)
		r.Get("/diagram", s.GetDiagram)
		r.Get("/events", s.SubscribeEvents)
		r.Post("/{command}", s.ControlRun)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <title>Tempo API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => { window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui' }); };
</script>
</body>
</html>
`

// StartRequest is the body of POST /sessions/{id}/start.
type StartRequest struct {
	Algorithm string         `json:"algorithm,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Speed     *int           `json:"speed,omitempty"`
}

// StartResponse acknowledges a started run.
type StartResponse struct {
	RunID     string `json:"run_id"`
	Algorithm string `json:"algorithm"`
}

// SpeedRequest is both the body and the response of PUT /sessions/{id}/speed.
type SpeedRequest struct {
	Speed int `json:"speed"`
}

// SessionStatus describes one session.
type SessionStatus struct {
	ID        string               `json:"id"`
	Algorithm string               `json:"algorithm"`
	State     domain.PlaybackState `json:"state"`
	RunID     string               `json:"run_id,omitempty"`
	Speed     int                  `json:"speed"`
	Snapshot  *domain.Snapshot     `json:"snapshot,omitempty"`
	Outcome   *domain.Outcome      `json:"outcome,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "tempo-http",
		"version":     strings.TrimSpace(tempo.Version),
		"api_version": apiVersion,
	})
}

// ListAlgorithms handles the GET /algorithms request.
func (s *Server) ListAlgorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sessions.Catalog().List())
}

// StartRun handles the POST /sessions/{id}/start request.
// The body is checked against the StartRequest schema before any session
// state is touched.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("StartRun: read body failed", "err", err)
		return
	}
	var generic any = map[string]any{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &generic); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.logger.Warn("StartRun: invalid JSON", "session_id", id, "err", err)
			return
		}
	}
	if err := validateBody(s.spec, "StartRequest", generic); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		s.logger.Warn("StartRun: schema violation", "session_id", id, "err", err)
		return
	}

	var body StartRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	var opts []playback.StartOption
	if body.Speed != nil {
		opts = append(opts, playback.WithStartSpeed(*body.Speed))
	}

	runID, err := s.Sessions.Start(r.Context(), id, body.Algorithm, body.Input, opts...)
	if err != nil {
		s.fail(w, "StartRun", id, err)
		return
	}
	sess, err := s.Sessions.Get(id)
	if err != nil {
		s.fail(w, "StartRun", id, err)
		return
	}
	algorithm := sess.Controller.Definition().Name()

	s.logger.Info("run started", "session_id", id, "run_id", runID, "algorithm", algorithm)
	writeJSON(w, http.StatusAccepted, StartResponse{RunID: runID, Algorithm: algorithm})
}

// ControlRun handles POST /sessions/{id}/{pause|resume|step|cancel|reset}.
func (s *Server) ControlRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	command := chi.URLParam(r, "command")

	var fn func(*playback.Controller) error
	switch command {
	case "pause":
		fn = (*playback.Controller).Pause
	case "resume":
		fn = (*playback.Controller).Resume
	case "step":
		fn = (*playback.Controller).StepOnce
	case "cancel":
		fn = func(c *playback.Controller) error { c.Cancel(); return nil }
	case "reset":
		fn = func(c *playback.Controller) error { c.Reset(); return nil }
	default:
		http.Error(w, fmt.Sprintf("Unknown command %q", command), http.StatusNotFound)
		return
	}

	if err := s.Sessions.Control(r.Context(), id, fn); err != nil {
		s.fail(w, "ControlRun", id, err)
		return
	}
	s.logger.Debug("command applied", "session_id", id, "command", command)
	s.writeStatus(w, id)
}

// SetSpeed handles the PUT /sessions/{id}/speed request.
func (s *Server) SetSpeed(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var body SpeedRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("SetSpeed: invalid request body", "err", err)
		return
	}

	var applied int
	err := s.Sessions.Control(r.Context(), id, func(c *playback.Controller) error {
		applied = c.SetSpeed(body.Speed)
		return nil
	})
	if err != nil {
		s.fail(w, "SetSpeed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, SpeedRequest{Speed: applied})
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	s.writeStatus(w, id)
}

// DeleteSession handles the DELETE /sessions/{id} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, "DeleteSession", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles the GET /sessions/{id}/history request.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter limit: %v", err), http.StatusBadRequest)
		return
	}
	if limit < 0 {
		http.Error(w, "limit must not be negative", http.StatusBadRequest)
		return
	}

	sess, err := s.Sessions.Get(id)
	if err != nil {
		s.fail(w, "GetHistory", id, err)
		return
	}
	history := sess.Controller.History(limit)
	if history == nil {
		history = []domain.Snapshot{}
	}
	writeJSON(w, http.StatusOK, history)
}

// GetDiagram handles the GET /sessions/{id}/diagram request.
func (s *Server) GetDiagram(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.Sessions.Get(id)
	if err != nil {
		s.fail(w, "GetDiagram", id, err)
		return
	}
	snap, ok := sess.Controller.CurrentSnapshot()
	if !ok {
		s.fail(w, "GetDiagram", id, domain.ErrNotRunning)
		return
	}
	g, ok := snap.State.(*workspace.Graph)
	if !ok {
		http.Error(w, fmt.Sprintf("%s does not run on a graph", snap.Algorithm), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(g, graph.OverlayFromMarks(snap.Marks)))
}

// SubscribeEvents handles the GET /sessions/{id}/events request (SSE).
// Each snapshot is sent as an "snapshot" event and each run outcome as an
// "outcome" event. A client that falls behind is disconnected.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.Sessions.Get(id)
	if err != nil {
		s.fail(w, "SubscribeEvents", id, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.Streams.Subscribe(id, sess.Controller)
	defer cancel()

	s.logger.Info("SSE: client subscribed", "session_id", id)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "session_id", id)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || id == "" {
		http.Error(w, "Invalid format for parameter id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (s *Server) writeStatus(w http.ResponseWriter, id string) {
	sess, err := s.Sessions.Get(id)
	if err != nil {
		s.fail(w, "GetSession", id, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOf(sess))
}

func statusOf(sess *session.Session) SessionStatus {
	c := sess.Controller
	st := SessionStatus{
		ID:        sess.ID,
		Algorithm: c.Definition().Name(),
		State:     c.State(),
		RunID:     c.RunID(),
		Speed:     c.Speed(),
	}
	if snap, ok := c.CurrentSnapshot(); ok {
		st.Snapshot = &snap
	}
	if o, ok := c.LastOutcome(); ok {
		st.Outcome = &o
	}
	return st
}

// fail maps domain errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, op, id string, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "session_id", id, "err", err)
	} else {
		s.logger.Warn(op+" rejected", "session_id", id, "err", err)
	}
	http.Error(w, err.Error(), code)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownAlgorithm):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotRunning), errors.Is(err, domain.ErrNotPaused):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
