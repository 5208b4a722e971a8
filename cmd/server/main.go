package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/radon/internal/logging"
	"github.com/Tyrowin/radon/internal/server"
)

type runFlags struct {
	configPath string
	address    string
	websocket  bool
	logLevel   string
}

func main() {
	logging.ConfigureRuntime()

	rootCmd := &cobra.Command{
		Use:           "radon",
		Short:         "radon is a single-room WebSocket chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("radon exited with error")
		os.Exit(1)
	}
}

func newRunCommand() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the chat room",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.logLevel != "" && !logging.SetLevel(flags.logLevel) {
				return errors.Errorf("unknown log level %q", flags.logLevel)
			}

			cfg, err := server.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("address") {
				cfg.Address = flags.address
			}
			if cmd.Flags().Changed("websocket") {
				cfg.WebSocketEnabled = flags.websocket
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to a TOML configuration file")
	cmd.Flags().StringVarP(&flags.address, "address", "a", "", "Listen address, overrides the configuration")
	cmd.Flags().BoolVar(&flags.websocket, "websocket", true, "Serve the /ws chat endpoint")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, cfg *server.Config) error {
	srv := server.New(cfg)
	httpServer := server.CreateServer(srv.Config().Address, srv.Routes())

	log.Info().
		Str("address", srv.Config().Address).
		Bool("websocket", srv.Config().WebSocketEnabled).
		Strs("allowed_origins", srv.Config().AllowedOrigins).
		Msg("Starting radon chat server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "listen")
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			_ = srv.Shutdown(nil, srv.Config().ShutdownTimeout)
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	if err := srv.Shutdown(httpServer, srv.Config().ShutdownTimeout); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
