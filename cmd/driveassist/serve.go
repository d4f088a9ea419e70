package main

import (
	"context"

	"codeberg.org/mutker/driveassist/internal/logger"
	"codeberg.org/mutker/driveassist/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the shared signal and advice documents over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd)

			srv, err := server.New(server.Config{
				Listen:      cfg.Serve.Listen,
				SignalsPath: cfg.SignalsPath,
				AdvicePath:  cfg.AdvicePath,
			}, logger.Default())
			if err != nil {
				return err
			}

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()

			return srv.Shutdown(shutdownCtx)
		},
	}
}
