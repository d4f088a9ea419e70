package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/driveassist/internal/config"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/logger"
	"github.com/spf13/cobra"
)

const dotEnvFile = ".env"

func main() {
	logger.InitWithWriter(os.Stderr, logger.IsService())

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.ErrorWithCode(logger.Code(err, errors.ErrInternal)).Msg("Exiting with error")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "driveassist",
		Short: "Rule-based driving advice from live vehicle telemetry",
		Long: `driveassist reads the vehicle telemetry snapshot, derives advisory
messages and a priority label, appends every observation to a labeled CSV
dataset and publishes the latest advice for display clients.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to the configuration file")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(runCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(serveCmd())

	return root
}

// loadConfig resolves the configuration for cmd and initializes logging.
// Configuration errors abort the process.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfgFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(
		config.WithConfigFile(cfgFile),
		config.WithDotEnv(dotEnvFile),
		config.WithFlags(cmd.Flags()),
	)
	if err != nil {
		logger.FatalWithCode(logger.Code(err, errors.ErrConfig)).Msg("Failed to load configuration")
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		logger.FatalWithCode(logger.Code(err, errors.ErrInvalidLogLevel)).Msg("Failed to initialize logger")
	}
	logger.Debug().Msg("Config loaded")

	return cfg
}

// withSignals returns a context cancelled on SIGINT or SIGTERM.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go handleSignals(ctx, cancel)

	return ctx, cancel
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}
