package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/assemblr/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type cleanupParams struct {
	Dir     string `json:"dir" jsonschema:"assembly output directory to tidy"`
	Threads int    `json:"threads,omitempty" jsonschema:"compression threads (pigz only). Defaults to the configured thread count."`
}

func (h *handler) cleanupHandler(ctx context.Context, req *mcp.CallToolRequest, params cleanupParams) (*mcp.CallToolResult, any, error) {
	if params.Dir == "" {
		return errorResult("dir is required")
	}

	cfg, engine := h.current()
	inv := workflow.CleanupInvocation{
		AssemblyDir: params.Dir,
		Compressor:  cfg.CompressorBinary(),
		Threads:     cfg.Threads(),
	}
	if params.Threads > 0 {
		inv.Threads = params.Threads
	}

	res, err := engine.CleanUp(ctx, inv)
	if err != nil {
		return errorResult(fmt.Sprintf("cleanup failed: %v", err))
	}
	h.save(ctx, res.Run)

	var b strings.Builder
	fmt.Fprintf(&b, "Cleanup: %s (%s)\n", verdict(res.Success()), res.Status)
	fmt.Fprintf(&b, "Run: %s\n", res.Run.ID)
	fmt.Fprintf(&b, "Compressed: %s\n", strings.Join(res.Outputs.Compressed, ", "))
	if !res.Success() {
		fmt.Fprintln(&b)
		writeStderr(&b, res.Run.LastAttempt())
	}
	return textResult(b.String())
}
