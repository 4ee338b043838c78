package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type assembleParams struct {
	Forward   string `json:"forward" jsonschema:"path to the forward paired reads (FASTQ)"`
	Reverse   string `json:"reverse" jsonschema:"path to the reverse paired reads (FASTQ)"`
	Single    string `json:"single" jsonschema:"path to the unpaired reads (FASTQ)"`
	OutDir    string `json:"out_dir" jsonschema:"assembler output directory. It is deleted if the assembly fails after its checkpoint retry."`
	OutPrefix string `json:"out_prefix,omitempty" jsonschema:"prefix of the output files. Defaults to the configured prefix, then final."`
	Threads   int    `json:"threads,omitempty" jsonschema:"number of CPU threads. Defaults to the configured thread count."`
	Preset    string `json:"preset,omitempty" jsonschema:"parameter preset: default, meta-sensitive, meta-large or fast. Unknown names use the assembler defaults."`
}

func (h *handler) assembleHandler(ctx context.Context, req *mcp.CallToolRequest, params assembleParams) (*mcp.CallToolResult, any, error) {
	if params.OutDir == "" {
		return errorResult("out_dir is required")
	}

	cfg, engine := h.current()
	inv := workflow.AssemblyInvocation{
		Binary:    cfg.AssemblerBinary(),
		Threads:   cfg.Threads(),
		OutDir:    params.OutDir,
		Reads:     workflow.ReadInputs{Forward: params.Forward, Reverse: params.Reverse, Single: params.Single},
		OutPrefix: cfg.Assembler.OutPrefix,
		Preset:    workflow.Preset(cfg.AssemblerPreset()),
	}
	if params.Threads > 0 {
		inv.Threads = params.Threads
	}
	if params.OutPrefix != "" {
		inv.OutPrefix = params.OutPrefix
	}
	if params.Preset != "" {
		inv.Preset = workflow.Preset(params.Preset)
	}

	res, err := engine.Assemble(ctx, inv)
	if err != nil {
		return errorResult(fmt.Sprintf("assemble failed: %v", err))
	}
	h.save(ctx, res.Run)

	return textResult(formatAssemble(res))
}

func formatAssemble(res *workflow.AssemblyResult) string {
	var b strings.Builder
	rr := res.Run

	fmt.Fprintf(&b, "Assembly: %s (%s) after %s\n", verdict(res.Success()), res.Status, attempts(len(rr.Attempts)))
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintf(&b, "Final contigs: %s\n", res.Outputs.FinalContigs)

	if !res.Success() {
		fmt.Fprintln(&b)
		if len(rr.Diagnostics) > 0 {
			fmt.Fprintf(&b, "Diagnostics logged: %s\n", strings.Join(rr.Diagnostics, ", "))
		}
		if rr.OutDirRemoved {
			fmt.Fprintln(&b, "Output directory removed.")
		}
		writeStderr(&b, rr.LastAttempt())
	}

	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with asm_inspect(run_id=%q).\n", rr.ID)
	return b.String()
}

func verdict(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}

func attempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}

// writeStderr appends the indented stderr tail of a, if any.
func writeStderr(b *strings.Builder, a *report.Attempt) {
	if a == nil || a.Stderr == "" {
		return
	}
	fmt.Fprintln(b, "Stderr:")
	for _, line := range strings.Split(a.Stderr, "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
