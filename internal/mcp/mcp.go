// Package mcp provides the assemblr MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/assemblr"
	"github.com/deixis/assemblr/internal/config"
	"github.com/deixis/assemblr/internal/diag"
	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/runner"
	"github.com/deixis/assemblr/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers. The config and
// engine are replaced together when the client reports a workspace root;
// a tool call keeps the pair it started with.
type handler struct {
	mu     sync.RWMutex
	cfg    *config.Config
	engine *workflow.Engine

	store report.Store
}

// current returns the config and engine serving the next tool call.
func (h *handler) current() (*config.Config, *workflow.Engine) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg, h.engine
}

func newEngine(r *runner.Runner, workspace string) *workflow.Engine {
	return &workflow.Engine{
		Runner:      r,
		Diagnostics: diag.NewFileLogger(diag.SlogSink{}),
		Workspace:   workspace,
	}
}

// NewServer creates an MCP server with all assemblr tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, workspace string) *mcp.Server {
	h := &handler{
		cfg:    cfg,
		engine: newEngine(r, workspace),
		store:  store,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "assemblr", Version: assemblr.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "asm_assemble",
		Description: `Assemble paired and single reads into contigs.

If the assembler fails it is rerun once with --continue to resume from its last checkpoint.
If the retry also fails, its options and log files are reported and the output directory is removed.
The run is stored for drill-down via asm_inspect.`,
	}, h.assembleHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "asm_subsample",
		Description: `Draw random subsamples of a read library at a given percentage.

Runs the subsampler once and lists the expected files of every subsample.
The run is stored for drill-down via asm_inspect.`,
	}, h.subsampleHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "asm_cleanup",
		Description: `Tidy a finished assembly directory.

Removes intermediate_contigs and compresses every *.contigs.fa file (pigz runs multithreaded).`,
	}, h.cleanupHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "asm_inspect",
		Description: `Drill into a stored asm_assemble, asm_subsample or asm_cleanup run.

Shows every attempt (argv, status, stderr tail) and the expected artifacts.
Filter artifacts by name (e.g. final_contigs), by sample index (e.g. 2), or both (e.g. subsample_forward.2).`,
	}, h.inspectHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and, if a valid
// root is returned, swaps in a config and engine for that workspace.
// This is called during session initialization.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace, "")
	if err != nil {
		slog.WarnContext(ctx, "ignoring workspace root", "workspace", workspace, "error", err)
		return
	}

	h.setWorkspace(workspace, loaded.Config)
}

// setWorkspace replaces the config and engine. Calls already running keep
// the engine they were given.
func (h *handler) setWorkspace(workspace string, cfg *config.Config) {
	r := &runner.Runner{
		Workspace: workspace,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}
	engine := newEngine(r, workspace)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
	h.engine = engine
}

// save stores a run for asm_inspect. A failed save only loses drill-down.
func (h *handler) save(ctx context.Context, rr *report.RunResult) {
	if err := h.store.Save(rr); err != nil {
		slog.WarnContext(ctx, "saving run", "run_id", rr.ID, "error", err)
	}
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
