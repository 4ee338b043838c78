package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/assemblr/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type subsampleParams struct {
	Forward       string `json:"forward" jsonschema:"path to the forward paired reads (FASTQ)"`
	Reverse       string `json:"reverse" jsonschema:"path to the reverse paired reads (FASTQ)"`
	Single        string `json:"single" jsonschema:"path to the unpaired reads (FASTQ)"`
	Percentage    int    `json:"percentage" jsonschema:"percentage of reads kept in each subsample"`
	NumSubsamples int    `json:"num_subsamples" jsonschema:"number of subsamples to draw"`
	OutDir        string `json:"out_dir" jsonschema:"directory receiving the subsamples"`
	OutPrefix     string `json:"out_prefix,omitempty" jsonschema:"file prefix of the subsamples. Defaults to percent_NN."`
	Seed          *int64 `json:"seed,omitempty" jsonschema:"random seed. Recorded only; the subsampler picks its own."`
}

func (h *handler) subsampleHandler(ctx context.Context, req *mcp.CallToolRequest, params subsampleParams) (*mcp.CallToolResult, any, error) {
	if params.OutDir == "" {
		return errorResult("out_dir is required")
	}

	cfg, engine := h.current()
	res, err := engine.Subsample(ctx, workflow.SubsampleInvocation{
		Binary:        cfg.SubsamplerBinary(),
		Reads:         workflow.ReadInputs{Forward: params.Forward, Reverse: params.Reverse, Single: params.Single},
		Percentage:    params.Percentage,
		NumSubsamples: params.NumSubsamples,
		OutDir:        params.OutDir,
		OutPrefix:     params.OutPrefix,
		RandomSeed:    params.Seed,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("subsample failed: %v", err))
	}
	h.save(ctx, res.Run)

	return textResult(formatSubsample(res))
}

func formatSubsample(res *workflow.SubsampleResult) string {
	var b strings.Builder
	rr := res.Run

	fmt.Fprintf(&b, "Subsample: %s (%s)\n", verdict(res.Success()), res.Status)
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintf(&b, "Output directory: %s\n", res.Outputs.OutDir)
	for i, s := range res.Outputs.Subsamples {
		fmt.Fprintf(&b, "  %d: %s %s %s\n", i, s.Forward, s.Reverse, s.Single)
	}
	if !res.Success() {
		fmt.Fprintln(&b)
		writeStderr(&b, rr.LastAttempt())
	}

	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with asm_inspect(run_id=%q, artifact=\"<name, sample or name.sample>\").\n", rr.ID)
	return b.String()
}
