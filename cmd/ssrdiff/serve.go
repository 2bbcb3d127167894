package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/ssrdiff/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr     string
		stdioMCP bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the comparison UI and JSON API",
		Long: `Serve the comparison UI on --addr (default from config, :8086).

With --mcp the ssrdiff tools are served over stdio for MCP clients instead
of HTTP. Set server.mcp in the configuration to also expose them on /mcp.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			st, err := newStack(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if err := st.capturer.Start(ctx); err != nil {
				logger.Warn("serve: browser start deferred", "error", err)
			}

			mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "ssrdiff", Version: version}, nil)
			st.service.RegisterMCP(mcpSrv)

			if stdioMCP {
				logger.Info("serve: mcp over stdio")
				return mcpSrv.Run(ctx, &mcp.StdioTransport{})
			}

			opts := []web.Option{
				web.WithMaxBody(cfg.Server.MaxBody),
				web.WithHistoryLimit(cfg.History.Limit),
				web.WithLogger(logger),
			}
			if cfg.Server.MCP {
				opts = append(opts, web.WithMCPHandler(mcp.NewStreamableHTTPHandler(
					func(*http.Request) *mcp.Server { return mcpSrv }, nil)))
			}

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           web.New(st.service, opts...).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("serve: listening", "addr", cfg.Server.Addr, "backend", cfg.Browser.Backend, "mcp", cfg.Server.MCP)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("serve: stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&stdioMCP, "mcp", false, "serve MCP over stdio instead of HTTP")
	return cmd
}
