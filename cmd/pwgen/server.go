package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/pwgen/internal/api"
	"github.com/kalambet/pwgen/internal/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the run queue worker and the MCP server (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(cmd.Context(), withMCP)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run only the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", true, "also serve MCP on stdin/stdout")
}

func newMCPServer(a *app) *server.MCPServer {
	return api.NewMCPServer(api.MCPDeps{
		Pipeline:  a.pipeline,
		Crawler:   a.crawler,
		Scanner:   a.scanner,
		Extractor: a.extractor,
		POM:       a.pom,
		Verifier:  a.verifier,
		Repairer:  a.repairer,
		OutputDir: a.cfg.Output.Dir,
	})
}

func runServer(ctx context.Context, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "pwgen version %s\n", version)

	a, err := loadApp(ctx, appOptions{PullModels: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing: %v\n", err)
		}
	}()

	token := a.cfg.API.Token
	if token == "" {
		token = uuid.NewString()
		printWarning("PWGEN_API_TOKEN not set; using a one-time token for this session: %s", token)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	worker := runner.NewWorker(a.store, a.pipeline, 500*time.Millisecond)
	go worker.Run(ctx)

	if withMCP {
		stdioSrv := server.NewStdioServer(newMCPServer(a))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewAppHandler(api.AppDeps{
			Store:        a.store,
			Pipeline:     a.pipeline,
			Token:        token,
			DefaultLimit: a.cfg.Pipeline.DefaultLimit,
		}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "pwgen listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context) error {
	a, err := loadApp(ctx, appOptions{PullModels: true})
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("MCP server started (stdio transport)")
	err = server.NewStdioServer(newMCPServer(a)).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
