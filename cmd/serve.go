package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/medflow-cli/internal/insights"
	"github.com/KaramelBytes/medflow-cli/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveProvider string
	serveModel    string
	serveNoAI     bool
	serveMaxBody  int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API for the dashboard",
	Example: `  medflow serve
  medflow serve --addr 0.0.0.0:9090 --no-ai`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" && cfg != nil {
			addr = cfg.ServerAddr
		}
		if addr == "" {
			addr = "127.0.0.1:8080"
		}
		opts := server.Options{
			MaxBodyBytes: serveMaxBody,
			Logger:       logger,
		}
		if cfg != nil {
			opts.CORSOrigins = cfg.CORSOrigins
			opts.FlowLimit = cfg.FlowLimit
		}
		if !serveNoAI {
			rt, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: serveProvider})
			if err != nil {
				fmt.Fprintf(os.Stderr, "⚠ Insights disabled: %v\n", err)
			} else {
				opts.Runtime = rt
				opts.Insights = insights.Config{Model: selectModel(cfg, serveModel)}
				if cfg != nil {
					opts.Insights.MaxTokens = cfg.MaxTokens
					opts.Insights.Temperature = cfg.Temperature
					opts.Insights.RequestsPerMinute = cfg.RequestsPerMinute
				}
				logger.Info("insights enabled", "provider", providerName, "model", opts.Insights.Model)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Printf("✓ MedFlow API on http://%s (metrics at /metrics)\n", addr)
		start := time.Now()
		if err := server.New(opts).ListenAndServe(ctx, addr); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		fmt.Printf("✓ Server stopped after %s\n", time.Since(start).Round(time.Second))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address host:port (default from config server_addr)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "AI provider for /api/insights (default from config)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "model for /api/insights (default from config)")
	serveCmd.Flags().BoolVar(&serveNoAI, "no-ai", false, "disable /api/insights")
	serveCmd.Flags().Int64Var(&serveMaxBody, "max-body", 10<<20, "maximum request body size in bytes")
}
