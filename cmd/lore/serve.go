package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ersonp/lore-graph/internal/application/tools"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	transport string
	addr      string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph tools over MCP",
		Long: `Starts a Model Context Protocol server exposing search, traversal,
causal and build tools to agents. The --world flag sets the default world
for calls that omit world_id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.transport, "transport", "t", "stdio", "Transport (stdio, http)")
	cmd.Flags().StringVar(&flags.addr, "addr", ":8081", "Listen address for the http transport")

	return cmd
}

func runServe(cmd *cobra.Command, flags serveFlags) error {
	if !slices.Contains(validTransports, flags.transport) {
		return fmt.Errorf("invalid transport %q, valid transports: %v", flags.transport, validTransports)
	}

	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		var defaultWorld string
		if globalWorld != "" {
			id, err := d.Worlds.Resolve(globalWorld)
			if err != nil {
				return err
			}
			defaultWorld = id
		}

		srv := tools.NewServer(d.Graph, tools.Options{
			Name:         "lore-graph",
			Version:      version,
			DefaultWorld: defaultWorld,
			ResolveWorld: d.Worlds.Resolve,
			Logger:       d.Logger,
		})

		err := serve(ctx, srv, flags, d.Logger)

		// Stop background builds and let them release their flags while the
		// stores are still open.
		d.Graph.Build.Shutdown()
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if werr := d.Graph.Build.Wait(waitCtx); werr != nil {
			d.Logger.Warn("background builds still running at shutdown", zap.Error(werr))
		}

		return err
	})
}

func serve(ctx context.Context, srv *mcp.Server, flags serveFlags, logger *zap.Logger) error {
	if flags.transport == "stdio" {
		logger.Info("MCP server starting", zap.String("transport", "stdio"))
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serving stdio: %w", err)
		}
		return nil
	}

	httpServer := &http.Server{
		Addr: flags.addr,
		Handler: mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("MCP server listening", zap.String("transport", "http"), zap.String("addr", flags.addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
