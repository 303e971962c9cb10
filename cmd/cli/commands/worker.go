package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/docconv/internal/constants"
	"github.com/celestiaorg/docconv/internal/logger"
	"github.com/celestiaorg/docconv/internal/settings"
	"github.com/celestiaorg/docconv/internal/worker"
)

// runWorker is replaced in tests
var runWorker = worker.Run

// newWorkerCmd is the entry point of an isolated conversion process. The
// coordinator starts it with the converter command after "--".
func newWorkerCmd() *cobra.Command {
	var opts worker.Options
	var pairs []string

	cmd := &cobra.Command{
		Use:    "worker [flags] -- <converter command>",
		Short:  "Convert a single job in an isolated process",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.InitializeAndConfigure(os.Getenv(constants.EnvLogLevel))

			s, err := parseSettings(pairs)
			if err != nil {
				return err
			}
			if pw := os.Getenv(worker.PasswordEnv); pw != "" {
				s[settings.KeyPassword] = pw
			}
			opts.Settings = s

			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				args = args[dash:]
			}
			opts.Command = args

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.JobID, "job-id", "", "Job ID")
	cmd.Flags().StringVar(&opts.InputPath, "input", "", "Input PDF")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "", "Output directory")
	cmd.Flags().StringVar(&opts.ProgressURL, "progress-url", "", "Progress endpoint of the coordinator")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", time.Second, "Abort polling interval")
	cmd.Flags().StringArrayVar(&pairs, flagSetting, nil, "Conversion setting as key=value (repeatable)")
	return cmd
}
