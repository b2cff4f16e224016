package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tempo"
	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/pkg/algorithms"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/playback"
	"github.com/aretw0/tempo/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DefaultSession is used when a tool call names no session.
const DefaultSession = "default"

// Status aligns with the HTTP SessionStatus and is shared by every control tool.
type Status struct {
	Session   string               `json:"session" jsonschema_description:"Session identifier"`
	Algorithm string               `json:"algorithm" jsonschema_description:"Algorithm bound to the session"`
	State     domain.PlaybackState `json:"state" jsonschema_description:"Playback state: idle, running, paused or completed"`
	RunID     string               `json:"run_id,omitempty" jsonschema_description:"Identifier of the active run"`
	Speed     int                  `json:"speed" jsonschema_description:"Delay between steps in milliseconds"`
	Snapshot  *domain.Snapshot     `json:"snapshot,omitempty" jsonschema_description:"Latest published snapshot"`
	Outcome   *domain.Outcome      `json:"outcome,omitempty" jsonschema_description:"Outcome of the last finished run"`
	History   []domain.Snapshot    `json:"history,omitempty" jsonschema_description:"Recent snapshots, oldest first"`
}

// AlgorithmList is the result of list_algorithms.
type AlgorithmList struct {
	Algorithms []algorithms.Info `json:"algorithms" jsonschema_description:"Registered algorithm definitions"`
}

// Server exposes session playback as MCP tools.
type Server struct {
	sessions  *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger. It must not write to stdout when serving stdio.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		mcpServer: server.NewMCPServer("tempo-mcp", strings.TrimSpace(tempo.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	sessionArg := mcp.WithString("session", mcp.Description("Session identifier (defaults to \"default\")"))

	s.mcpServer.AddTool(mcp.NewTool("list_algorithms",
		mcp.WithDescription("List the algorithms that can be played back."),
		mcp.WithOutputSchema[AlgorithmList](),
	), mcp.NewStructuredToolHandler(s.handleListAlgorithms))

	s.mcpServer.AddTool(mcp.NewTool("start",
		mcp.WithDescription("Start a run, cancelling any run already active in the session."),
		sessionArg,
		mcp.WithString("algorithm", mcp.Description("Algorithm name (see list_algorithms)")),
		mcp.WithString("input", mcp.Description("JSON object with the algorithm input; omit for the built-in sample")),
		mcp.WithNumber("speed", mcp.Description("Delay between steps in milliseconds (0-1000)")),
		mcp.WithOutputSchema[Status](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	commands := []struct {
		name, desc string
		fn         func(*playback.Controller) error
	}{
		{"pause", "Pause the active run at its next suspension point.", (*playback.Controller).Pause},
		{"resume", "Resume a paused run.", (*playback.Controller).Resume},
		{"step", "Advance a paused run by exactly one step.", (*playback.Controller).StepOnce},
		{"cancel", "Cancel the active run.", func(c *playback.Controller) error { c.Cancel(); return nil }},
	}
	for _, cmd := range commands {
		s.mcpServer.AddTool(mcp.NewTool(cmd.name,
			mcp.WithDescription(cmd.desc),
			sessionArg,
			mcp.WithOutputSchema[Status](),
		), mcp.NewStructuredToolHandler(s.control(cmd.fn)))
	}

	s.mcpServer.AddTool(mcp.NewTool("set_speed",
		mcp.WithDescription("Change the delay between steps; applies from the next step."),
		sessionArg,
		mcp.WithNumber("speed", mcp.Required(), mcp.Description("Delay in milliseconds, clamped to 0-1000")),
		mcp.WithOutputSchema[Status](),
	), mcp.NewStructuredToolHandler(s.handleSetSpeed))

	s.mcpServer.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Report playback state and the latest snapshot of a session."),
		sessionArg,
		mcp.WithNumber("history", mcp.Description("Also return up to this many recent snapshots")),
		mcp.WithOutputSchema[Status](),
	), mcp.NewStructuredToolHandler(s.handleStatus))
}

// Handler methods for structured tools

func (s *Server) handleListAlgorithms(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AlgorithmList, error) {
	return AlgorithmList{Algorithms: s.sessions.Catalog().List()}, nil
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Status, error) {
	id := sessionOf(args)
	algorithm, _ := args["algorithm"].(string)

	var input map[string]any
	if raw, ok := args["input"].(string); ok && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return Status{}, fmt.Errorf("input must be a JSON object: %w", err)
		}
	}

	var opts []playback.StartOption
	if speed, ok := number(args, "speed"); ok {
		opts = append(opts, playback.WithStartSpeed(speed))
	}

	runID, err := s.sessions.Start(ctx, id, algorithm, input, opts...)
	if err != nil {
		s.logger.Warn("MCP start rejected", "session_id", id, "err", err)
		return Status{}, err
	}
	s.logger.Info("MCP run started", "session_id", id, "run_id", runID)
	return s.status(id, 0)
}

func (s *Server) control(fn func(*playback.Controller) error) func(context.Context, mcp.CallToolRequest, map[string]interface{}) (Status, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Status, error) {
		id := sessionOf(args)
		if err := s.sessions.Control(ctx, id, fn); err != nil {
			return Status{}, describe(err)
		}
		return s.status(id, 0)
	}
}

func (s *Server) handleSetSpeed(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Status, error) {
	id := sessionOf(args)
	speed, ok := number(args, "speed")
	if !ok {
		return Status{}, errors.New("speed is required")
	}
	err := s.sessions.Control(ctx, id, func(c *playback.Controller) error {
		c.SetSpeed(speed)
		return nil
	})
	if err != nil {
		return Status{}, describe(err)
	}
	return s.status(id, 0)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (Status, error) {
	history, _ := number(args, "history")
	return s.status(sessionOf(args), history)
}

func (s *Server) status(id string, history int) (Status, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return Status{}, describe(err)
	}
	c := sess.Controller
	st := Status{
		Session:   id,
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
	if history > 0 {
		st.History = c.History(history)
	}
	return st, nil
}

func (s *Server) registerResources() {
	// EXPOSE: tempo://algorithms
	s.mcpServer.AddResource(mcp.NewResource("tempo://algorithms", "Algorithm Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.sessions.Catalog().List())
		if err != nil {
			return nil, fmt.Errorf("failed to encode catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "tempo://algorithms",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

// -- Helpers --

func sessionOf(args map[string]interface{}) string {
	if id, ok := args["session"].(string); ok && id != "" {
		return id
	}
	return DefaultSession
}

// number reads a JSON number argument as an int.
func number(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// describe adds a hint for the errors an agent can act on.
func describe(err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return fmt.Errorf("%w (call start first)", err)
	case errors.Is(err, domain.ErrNotPaused):
		return fmt.Errorf("%w (call pause before step)", err)
	}
	return err
}
