package mcp

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deixis/assemblr/internal/config"
	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fake tools. Each parses only the flags it needs.
const (
	resumingAssembler = `#!/bin/sh
out=""; cont=0; prefix=final
while [ $# -gt 0 ]; do
  case "$1" in
    --out-dir) out="$2"; shift ;;
    --out-prefix) prefix="$2"; shift ;;
    --continue) cont=1 ;;
  esac
  shift
done
mkdir -p "$out"
if [ "$cont" -eq 0 ]; then echo "checkpoint lost" >&2; exit 1; fi
echo ">c1" > "$out/$prefix.contigs.fa"
`
	brokenAssembler = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in --out-dir) out="$2"; shift ;; esac
  shift
done
mkdir -p "$out"
echo "--k-min 21" > "$out/opts.txt"
echo "assembly crashed" > "$out/final.log"
echo "std::bad_alloc" >&2
exit 250
`
	subsampler = `#!/bin/sh
echo "$@" > args.txt
`
	compressor = `#!/bin/sh
for f in "$@"; do mv "$f" "$f.gz"; done
`
)

// fixture creates a workspace holding the fake tools and returns it with a
// config pointing at them.
func fixture(t *testing.T, assembler string) (string, *config.Config) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	bin := t.TempDir()
	install := func(name, script string) string {
		path := filepath.Join(bin, name)
		require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
		return path
	}

	cfg := &config.Config{RawThreads: 2}
	cfg.Assembler.Binary = install("megahit", assembler)
	cfg.Subsampler.Binary = install("sample_seqs", subsampler)
	cfg.Compressor.Binary = install("gzip", compressor)
	return dir, cfg
}

// setup creates a full assemblr MCP server + client over in-memory transports.
func setup(t *testing.T, workspaceDir string, cfg *config.Config) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	store := report.NewLRUStore(5, nil)
	r := &runner.Runner{
		Workspace: workspaceDir,
		Timeout:   30 * time.Second,
		MaxOutput: cfg.MaxOutputBytes(),
	}

	server := NewServer(cfg, r, store, workspaceDir)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool(%s)", name)
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// runID extracts the "Run: <id>" line of a tool result.
func runID(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if id, ok := strings.CutPrefix(line, "Run: "); ok {
			return id
		}
	}
	t.Fatalf("no run ID in:\n%s", text)
	return ""
}

var reads = map[string]any{
	"forward": "r.1.fq",
	"reverse": "r.2.fq",
	"single":  "r.U.fq",
}

func withReads(extra map[string]any) map[string]any {
	args := map[string]any{}
	for k, v := range reads {
		args[k] = v
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

// --- asm_assemble ---

func TestAsmAssemble_ResumesFromCheckpoint(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cs := setup(t, dir, cfg)

	res := callTool(t, cs, "asm_assemble", withReads(map[string]any{"out_dir": "asm"}))
	text := resultText(res)
	require.False(t, res.IsError, text)
	require.Contains(t, text, "Assembly: ok (exit status 0) after 2 attempts")
	require.Contains(t, text, "Final contigs: asm/final.contigs.fa")
	require.FileExists(t, filepath.Join(dir, "asm", "final.contigs.fa"))
}

func TestAsmAssemble_OutPrefixAndPreset(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cs := setup(t, dir, cfg)

	res := callTool(t, cs, "asm_assemble", withReads(map[string]any{
		"out_dir":    "asm",
		"out_prefix": "lib1",
		"preset":     "meta-sensitive",
		"threads":    8,
	}))
	text := resultText(res)
	require.Contains(t, text, "Final contigs: asm/lib1.contigs.fa")

	inspect := resultText(callTool(t, cs, "asm_inspect", map[string]any{"run_id": runID(t, text)}))
	require.Contains(t, inspect, "--num-cpu-threads 8")
	require.Contains(t, inspect, "--out-prefix lib1 --presets meta-sensitive --continue")
}

func TestAsmAssemble_TerminalFailure(t *testing.T) {
	dir, cfg := fixture(t, brokenAssembler)
	cs := setup(t, dir, cfg)

	res := callTool(t, cs, "asm_assemble", withReads(map[string]any{"out_dir": "asm"}))
	text := resultText(res)
	require.Contains(t, text, "Assembly: FAILED (exit status 250) after 2 attempts")
	require.Contains(t, text, "Output directory removed.")
	require.Contains(t, text, "std::bad_alloc")
	require.Contains(t, text, filepath.Join(dir, "asm", "opts.txt"))
	require.NoDirExists(t, filepath.Join(dir, "asm"))

	inspect := resultText(callTool(t, cs, "asm_inspect", map[string]any{
		"run_id":   runID(t, text),
		"artifact": report.ArtifactFinalContigs,
	}))
	require.Contains(t, inspect, "(assemble) FAILED")
	require.Contains(t, inspect, "Attempt 2: exit 250")
	require.Contains(t, inspect, "final_contigs: asm/final.contigs.fa")
}

func TestAsmAssemble_ToolUnavailable(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cfg.Assembler.Binary = "megahit-not-installed"
	cs := setup(t, dir, cfg)

	res := callTool(t, cs, "asm_assemble", withReads(map[string]any{"out_dir": "asm"}))
	require.True(t, res.IsError)
	require.Contains(t, resultText(res), "megahit-not-installed is required but not installed.")
}

func TestAsmAssemble_MissingOutDir(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cs := setup(t, dir, cfg)

	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "asm_assemble",
		Arguments: reads,
	})
	require.Error(t, err)
}

// --- asm_subsample ---

func TestAsmSubsample(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cs := setup(t, dir, cfg)

	res := callTool(t, cs, "asm_subsample", withReads(map[string]any{
		"percentage":     7,
		"num_subsamples": 2,
		"out_dir":        "sub",
		"seed":           1234,
	}))
	text := resultText(res)
	require.False(t, res.IsError, text)
	require.Contains(t, text, "Subsample: ok (exit status 0)")
	require.Contains(t, text, "1: sub/percent_07.sample_1.1.fq sub/percent_07.sample_1.2.fq sub/percent_07.sample_1.U.fq")

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	require.Equal(t, "-1 r.1.fq -2 r.2.fq -s r.U.fq -p 7 -n 2 -o sub -b percent_07\n", string(args))

	inspect := resultText(callTool(t, cs, "asm_inspect", map[string]any{
		"run_id":   runID(t, text),
		"artifact": "subsample_reverse.1",
	}))
	require.Contains(t, inspect, "subsample_reverse.1: sub/percent_07.sample_1.2.fq")
	require.NotContains(t, inspect, "subsample_forward")
}

// --- asm_cleanup ---

func TestAsmCleanup(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	asm := filepath.Join(dir, "asm")
	require.NoError(t, os.MkdirAll(filepath.Join(asm, "intermediate_contigs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(asm, "final.contigs.fa"), []byte(">c1\n"), 0o644))
	cs := setup(t, dir, cfg)

	res := callTool(t, cs, "asm_cleanup", map[string]any{"dir": "asm"})
	text := resultText(res)
	require.False(t, res.IsError, text)
	require.Contains(t, text, "Cleanup: ok")
	require.FileExists(t, filepath.Join(asm, "final.contigs.fa.gz"))
	require.NoDirExists(t, filepath.Join(asm, "intermediate_contigs"))
}

func TestAsmCleanup_MissingDir(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cs := setup(t, dir, cfg)
	res := callTool(t, cs, "asm_cleanup", map[string]any{"dir": ""})
	require.True(t, res.IsError)
	require.Contains(t, resultText(res), "dir is required")
}

// --- asm_inspect ---

func TestAsmInspect_MissingRunID(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cs := setup(t, dir, cfg)
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "asm_inspect",
		Arguments: map[string]any{"artifact": "final_contigs"},
	})
	require.Error(t, err)
}

func TestAsmInspect_UnknownRunID(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cs := setup(t, dir, cfg)
	res := callTool(t, cs, "asm_inspect", map[string]any{"run_id": "nonexistent-id"})
	require.True(t, res.IsError)
}

func TestAsmInspect_NoMatchingArtifact(t *testing.T) {
	dir, cfg := fixture(t, resumingAssembler)
	cs := setup(t, dir, cfg)

	text := resultText(callTool(t, cs, "asm_assemble", withReads(map[string]any{"out_dir": "asm"})))
	res := callTool(t, cs, "asm_inspect", map[string]any{
		"run_id":   runID(t, text),
		"artifact": "subsample_forward",
	})
	require.False(t, res.IsError)
	require.Contains(t, resultText(res), "No artifacts match")
}

func TestSetWorkspace_RunningCallKeepsEngine(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	h := &handler{cfg: &config.Config{}, engine: newEngine(&runner.Runner{Workspace: first}, first)}

	cfg, engine := h.current()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() { h.setWorkspace(second, &config.Config{RawThreads: 3}) })
		wg.Go(func() {
			c, e := h.current()
			assert.NotNil(t, c)
			assert.NotNil(t, e)
		})
	}
	wg.Wait()

	require.Equal(t, first, engine.Workspace)
	require.Equal(t, 1, cfg.Threads())

	cfg, engine = h.current()
	require.Equal(t, second, engine.Workspace)
	require.Equal(t, 3, cfg.Threads())
}
