package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/deixis/assemblr/internal/config"
	asmmcp "github.com/deixis/assemblr/internal/mcp"
	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func (a *app) newMCPCmd() *cobra.Command {
	var (
		httpAddr     string
		instructions bool
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server (stdio, or streamable HTTP with --http)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if instructions {
				fmt.Fprint(a.stdout, asmmcp.Instructions)
				return nil
			}
			return a.serve(cmd.Context(), httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	return cmd
}

func (a *app) serve(ctx context.Context, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	store := report.NewLRUStore(config.DefaultLRUCapacity, a.store())
	// Each server adopts its client's workspace root, so HTTP sessions
	// get their own.
	newServer := func() *mcpsdk.Server {
		r := &runner.Runner{
			Workspace: workspace,
			Timeout:   a.cfg.Timeout(),
			MaxOutput: a.cfg.MaxOutputBytes(),
		}
		return asmmcp.NewServer(a.cfg, r, store, workspace)
	}

	if httpAddr != "" {
		return serveHTTP(ctx, newServer, httpAddr)
	}
	return newServer().Run(ctx, &mcpsdk.StdioTransport{})
}

// newRouter mounts the streamable MCP handler at /mcp next to a health check.
// newServer is called once per MCP session.
func newRouter(newServer func() *mcpsdk.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Handle("/mcp", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return newServer() },
		nil,
	))
	return r
}

func serveHTTP(ctx context.Context, newServer func() *mcpsdk.Server, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           newRouter(newServer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(ctx, "listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return httpServer.Close()
		}
		return nil
	})
	return g.Wait()
}
