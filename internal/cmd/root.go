package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/niels/minihttpd/pkg/config"
	"github.com/niels/minihttpd/pkg/logging"
	"github.com/niels/minihttpd/pkg/progress"
	"github.com/niels/minihttpd/pkg/server"
	"github.com/niels/minihttpd/pkg/stats"
	"github.com/niels/minihttpd/pkg/version"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	port        int
	debug       bool
	verbose     bool
	showVersion bool
	cfg         *config.Config
)

// NewRootCmd creates the root command for minihttpd
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   version.AppName,
		Short: version.Description,
		Long: fmt.Sprintf(`%s - %s

Serves files below ./static/, a live statistics page at /stats and
an addition endpoint at /calc?a=<int>&b=<int>.
`, version.AppName, version.Description),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg = config.LoadOrDefault(configPath)
			} else {
				cfg = config.LoadDefault()
			}
			envErr := config.ApplyEnv(cfg)

			logging.InitGlobalLogger(debug, cfg)
			if envErr != nil {
				logging.WarnWith("Ignoring environment override", map[string]interface{}{
					"error": envErr,
				})
			}
			if debug {
				logging.Debug("Debug logging enabled")
			}
			if configPath != "" {
				logging.InfoWith("Loaded configuration", map[string]interface{}{
					"path": configPath,
				})
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
				return nil
			}

			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				logging.ErrorWith("Invalid configuration", map[string]interface{}{
					"error": err,
				})
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logging.DebugWith("Configuration details", map[string]interface{}{
				"address":          cfg.Address(),
				"max_workers":      cfg.Concurrency.MaxWorkers,
				"read_timeout":     cfg.ReadTimeoutDuration(),
				"write_timeout":    cfg.WriteTimeoutDuration(),
				"recv_buffer_size": cfg.Server.RecvBufferSize,
				"static_root":      cfg.Static.Root,
				"allow_traversal":  cfg.Static.AllowTraversal,
			})

			var tracker progress.Tracker = progress.NoopTracker{}
			if verbose {
				tracker = progress.NewConsoleTracker().WithWriter(cmd.OutOrStdout())
			}

			srv := server.New(cfg, stats.NewRegistry()).WithTracker(tracker)

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Listen(); err != nil {
				logging.ErrorWith("Failed to start server", map[string]interface{}{
					"error": err,
				})
				return err
			}
			if !verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Server running on %s\n", srv.Addr())
			}

			return srv.Serve(ctx)
		},
	}

	rootCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (overrides config)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "", false, "Print one line per connection")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")

	return rootCmd
}
