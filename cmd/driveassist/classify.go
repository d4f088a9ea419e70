package main

import (
	"codeberg.org/mutker/driveassist/internal/advice"
	"codeberg.org/mutker/driveassist/internal/telemetry"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [signals.json]",
		Short: "Classify one snapshot and print the advisory payload",
		Long: `Reads a telemetry snapshot once, classifies it and prints the payload
that the loop would publish. Nothing is written to the dataset. The
configured signals path is used when no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)

			path := cfg.SignalsPath
			if len(args) == 1 {
				path = args[0]
			}

			reader, err := telemetry.NewReader(telemetry.Config{Path: path, Strict: cfg.StrictSignals})
			if err != nil {
				return err
			}

			reading, err := reader.Read(cmd.Context())
			if err != nil {
				return err
			}
			if len(reading.Missing) > 0 {
				cmd.PrintErrf("missing fields defaulted to 0: %v\n", reading.Missing)
			}

			data, err := advice.NewPayload(reading.Snapshot).Encode()
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)

			return err
		},
	}
}
