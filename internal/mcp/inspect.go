package mcp

import (
	"context"
	"fmt"

	"github.com/deixis/assemblr/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID    string `json:"run_id" jsonschema:"the run ID from an asm_assemble, asm_subsample or asm_cleanup result"`
	Artifact string `json:"artifact,omitempty" jsonschema:"artifact filter: a name (e.g. final_contigs), a sample index (e.g. 2), or name.index (e.g. subsample_forward.2). Empty lists all."`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	artifacts := report.Select(result, params.Artifact)
	if params.Artifact != "" && len(artifacts) == 0 {
		return textResult(fmt.Sprintf("No artifacts match %q in run %s (%s).", params.Artifact, params.RunID, result.Kind))
	}

	return textResult(report.Describe(result, artifacts))
}
