package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/deixis/assemblr"
	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/workflow"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

const (
	resumingAssembler = `#!/bin/sh
out=""; cont=0
while [ $# -gt 0 ]; do
  case "$1" in
    --out-dir) out="$2"; shift ;;
    --continue) cont=1 ;;
  esac
  shift
done
mkdir -p "$out"
[ "$cont" -eq 1 ] || exit 1
echo ">c1" > "$out/final.contigs.fa"
`
	brokenAssembler = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in --out-dir) out="$2"; shift ;; esac
  shift
done
mkdir -p "$out"
echo "assembly crashed" > "$out/final.log"
exit 3
`
)

type testEnv struct {
	config string
	outDir string
}

// newEnv writes a config pointing at a fake assembler and a private runs dir.
func newEnv(t *testing.T, assembler string) testEnv {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "megahit")
	require.NoError(t, os.WriteFile(bin, []byte(assembler), 0o755))

	cfg := filepath.Join(dir, "assemblr.yaml")
	body := "assembler:\n  binary: " + bin + "\nruns_dir: " + filepath.Join(dir, "runs") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return testEnv{config: cfg, outDir: filepath.Join(dir, "asm")}
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (e testEnv) assembleArgs(extra ...string) []string {
	args := []string{
		"--config", e.config, "assemble",
		"--forward", "r.1.fq", "--reverse", "r.2.fq", "--single", "r.U.fq",
		"--out-dir", e.outDir,
	}
	return append(args, extra...)
}

func TestAssemble_JSON(t *testing.T) {
	env := newEnv(t, resumingAssembler)

	code, stdout, _ := execute(t, append([]string{"--json"}, env.assembleArgs("--threads", "3")...)...)
	require.Equal(t, 0, code)

	var out struct {
		Run     report.RunResult
		Outputs workflow.AssemblyOutputs
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out.Run.Attempts, 2)
	require.Equal(t, []string{"--num-cpu-threads", "3"}, out.Run.Attempts[0].Argv[1:3])
	require.Equal(t, filepath.Join(env.outDir, "final.contigs.fa"), out.Outputs.FinalContigs)
	require.FileExists(t, out.Outputs.FinalContigs)

	code, stdout, _ = execute(t, "--config", env.config, "inspect", out.Run.ID, "final_contigs")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "(assemble) ok")
	require.Contains(t, stdout, "final_contigs: "+out.Outputs.FinalContigs)
}

func TestAssemble_TerminalFailureExitsOne(t *testing.T) {
	env := newEnv(t, brokenAssembler)

	code, stdout, _ := execute(t, env.assembleArgs()...)
	require.Equal(t, 1, code)
	require.Contains(t, stdout, "assemble: FAIL (exit status 3, 2 attempts)")
	require.Contains(t, stdout, "removed: "+env.outDir)
	require.NoDirExists(t, env.outDir)
}

func TestUsageErrorsExitTwo(t *testing.T) {
	env := newEnv(t, resumingAssembler)

	cases := map[string][]string{
		"missing flag":    {"--config", env.config, "assemble", "--forward", "a"},
		"unknown flag":    {"--config", env.config, "assemble", "--frobnicate"},
		"unknown command": {"--config", env.config, "frobnicate"},
		"inspect no args": {"--config", env.config, "inspect"},
		"cleanup no dir":  {"--config", env.config, "cleanup"},
		"cleanup empty":   {"--config", env.config, "cleanup", "--dir", ""},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			code, _, stderr := execute(t, args...)
			require.Equal(t, 2, code)
			require.Contains(t, stderr, "Usage:")
		})
	}
}

func TestCleanup_EmptyDirKeepsWorkingDirectory(t *testing.T) {
	env := newEnv(t, resumingAssembler)
	cwd := t.TempDir()
	t.Chdir(cwd)
	keep := filepath.Join(cwd, workflow.IntermediateDir, "keep.fa")
	require.NoError(t, os.MkdirAll(filepath.Dir(keep), 0o755))
	require.NoError(t, os.WriteFile(keep, []byte(">c1\n"), 0o644))

	code, _, stderr := execute(t, "--config", env.config, "cleanup", "--dir", "")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "--dir must not be empty")
	require.FileExists(t, keep)
}

func TestInspect_UnknownRun(t *testing.T) {
	env := newEnv(t, resumingAssembler)
	code, _, _ := execute(t, "--config", env.config, "inspect", "6f1f3a52-0b8e-4d7c-9a51-1d2e3f4a5b6c")
	require.Equal(t, 1, code)
}

func TestMissingConfigExitsOne(t *testing.T) {
	code, _, _ := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "version")
	require.Equal(t, 1, code)
}

func TestVersion(t *testing.T) {
	env := newEnv(t, resumingAssembler)
	code, stdout, _ := execute(t, "--config", env.config, "version")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "assemblr: "+assemblr.Version)
	require.Contains(t, stdout, "config:   "+env.config)
}

func testServer() *mcpsdk.Server {
	return mcpsdk.NewServer(&mcpsdk.Implementation{Name: "test", Version: "v0.0.1"}, nil)
}

func TestRouter_Healthz(t *testing.T) {
	srv := httptest.NewServer(newRouter(testServer))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestRouter_ServerPerSession(t *testing.T) {
	var servers atomic.Int32
	srv := httptest.NewServer(newRouter(func() *mcpsdk.Server {
		servers.Add(1)
		return testServer()
	}))
	defer srv.Close()

	for range 2 {
		client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
		cs, err := client.Connect(t.Context(), &mcpsdk.StreamableClientTransport{Endpoint: srv.URL + "/mcp"}, nil)
		require.NoError(t, err)
		require.NoError(t, cs.Close())
	}
	require.Equal(t, int32(2), servers.Load())
}

func TestPlural(t *testing.T) {
	require.Equal(t, "1 attempt", plural(1, "attempt"))
	require.Equal(t, "2 attempts", plural(2, "attempt"))
}
