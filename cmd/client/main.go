package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/radon/internal/client"
	"github.com/Tyrowin/radon/internal/logging"
)

func main() {
	// stdout carries chat lines; logs go to stderr at warn.
	logCfg := logging.DefaultConfig(logging.ProfileRuntime)
	logCfg.Out = os.Stderr
	logCfg.Level = zerolog.WarnLevel
	logging.ApplyEnvOverrides(&logCfg, os.Getenv)
	log.Logger = logging.New(logCfg)
	zerolog.SetGlobalLevel(logCfg.Level)

	rootCmd := &cobra.Command{
		Use:           "radon-client",
		Short:         "Terminal client for the radon chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newJoinCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("radon-client exited with error")
		os.Exit(1)
	}
}

func newJoinCommand() *cobra.Command {
	cfg := client.Config{}
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join the chat room; stdin lines are sent, room lines are printed",
		Long: "Join the chat room. Without --name the first line typed is the requested name; " +
			"keep typing names until one is accepted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return client.Run(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cfg.URL, "url", "u", "ws://127.0.0.1:8080/ws", "WebSocket URL of the chat endpoint")
	cmd.Flags().StringVarP(&cfg.Name, "name", "n", "", "Name to claim on connect")
	cmd.Flags().StringVar(&cfg.Origin, "origin", "http://127.0.0.1:8080", "Origin header sent during the handshake")
	return cmd
}
