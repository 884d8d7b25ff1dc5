// Package mcp exposes a quorum engine as Model Context Protocol tools so
// agents can validate flows, start runs and read traces.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/quorum/internal/logging"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FlowsURI is the resource listing stored flows.
const FlowsURI = "quorum://flows"

// Engine is the part of quorum.Engine the MCP server needs.
type Engine interface {
	RunFlow(ctx context.Context, flowID, version, instanceID string, fields map[string]any) (*domain.ExecutionResult, error)
	GetTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error)
	SaveFlow(ctx context.Context, data []byte, format flow.Format) (*flow.Graph, error)
	ListFlows(ctx context.Context) ([]ports.FlowRef, error)
}

// RunResponse summarizes a run for agents.
type RunResponse struct {
	InstanceID  string                 `json:"instance_id" jsonschema_description:"Instance id of the run"`
	Status      domain.Status          `json:"status" jsonschema_description:"completed or failed"`
	FinalNodeID string                 `json:"final_node_id,omitempty" jsonschema_description:"End node reached by a completed run"`
	Visited     []string               `json:"visited" jsonschema_description:"Node ids in visit order"`
	Risk        *domain.RiskAssessment `json:"risk,omitempty" jsonschema_description:"Last risk assessment of the run"`
	Error       *domain.Failure        `json:"error,omitempty" jsonschema_description:"Failure of a failed run"`
}

// ValidateResponse reports the outcome of validate_flow.
type ValidateResponse struct {
	Valid      bool               `json:"valid"`
	FlowID     string             `json:"flow_id,omitempty"`
	Version    string             `json:"version,omitempty"`
	Nodes      int                `json:"nodes,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger. MCP over stdio owns stdout, so it must write elsewhere.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP server.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("quorum-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for transports other than stdio.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_flow",
		mcp.WithDescription("Run a stored approval flow against a request context and return the outcome."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Id of the stored flow")),
		mcp.WithString("version", mcp.Required(), mcp.Description("Version of the stored flow")),
		mcp.WithString("instance_id", mcp.Description("Instance id; generated when omitted")),
		mcp.WithString("context", mcp.Description(`JSON object with the request fields, e.g. {"amount": 1200}`)),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunFlow))

	traceTool := mcp.NewTool("get_trace",
		mcp.WithDescription("Get the full recorded trace of a finished run."),
		mcp.WithString("instance_id", mcp.Required(), mcp.Description("Instance id of the run")),
	)
	s.mcpServer.AddTool(traceTool, s.handleGetTrace)

	validateTool := mcp.NewTool("validate_flow",
		mcp.WithDescription("Validate a flow document and list every violation. With save=true a valid document is also stored."),
		mcp.WithString("document", mcp.Required(), mcp.Description("The flow document")),
		mcp.WithString("format", mcp.Description("json (default), yaml or hcl")),
		mcp.WithBoolean("save", mcp.Description("Store the document when it is valid")),
		mcp.WithOutputSchema[ValidateResponse](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidateFlow))
}

func (s *Server) handleRunFlow(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	flowID, _ := args["flow_id"].(string)
	version, _ := args["version"].(string)
	instanceID, _ := args["instance_id"].(string)

	fields := map[string]any{}
	if raw, ok := args["context"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return RunResponse{}, fmt.Errorf("context must be a JSON object: %w", err)
		}
	}

	res, err := s.engine.RunFlow(ctx, flowID, version, instanceID, fields)
	if err != nil && res == nil {
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}
	if err != nil {
		s.logger.Error("MCP run_flow: trace not persisted", "instance_id", res.InstanceID, "error", err)
	}

	out := RunResponse{
		InstanceID:  res.InstanceID,
		Status:      res.Status,
		FinalNodeID: res.FinalNodeID,
		Visited:     res.Visited(),
		Error:       res.Error,
	}
	if res.Context != nil {
		out.Risk = res.Context.Risk
	}
	return out, nil
}

func (s *Server) handleGetTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	instanceID, _ := args["instance_id"].(string)

	res, err := s.engine.GetTrace(ctx, instanceID)
	if errors.Is(err, domain.ErrTraceNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no run with instance id %q", instanceID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load trace failed: %v", err)), nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleValidateFlow(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ValidateResponse, error) {
	doc, _ := args["document"].(string)
	format := flow.FormatJSON
	if f, ok := args["format"].(string); ok && f != "" {
		format = flow.Format(f)
	}
	save, _ := args["save"].(bool)

	var (
		g   *flow.Graph
		err error
	)
	if save {
		g, err = s.engine.SaveFlow(ctx, []byte(doc), format)
	} else {
		g, err = flow.LoadBytes([]byte(doc), format)
	}

	var verr *domain.GraphValidationError
	if errors.As(err, &verr) {
		return ValidateResponse{Valid: false, FlowID: verr.FlowID, Violations: verr.Violations}, nil
	}
	if err != nil {
		return ValidateResponse{}, err
	}
	return ValidateResponse{Valid: true, FlowID: g.FlowID(), Version: g.Version(), Nodes: g.Len()}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Stored flows",
		mcp.WithMIMEType("application/json"),
	), s.readFlows)
}

func (s *Server) readFlows(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	refs, err := s.engine.ListFlows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FlowsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
