package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	waitTimeout  time.Duration
	waitInterval time.Duration
	waitResult   bool
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the current status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, _, err := newService(cmd)
		if err != nil {
			return err
		}
		job, err := client.GetJobStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return newPrinter(cmd).Print(job)
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Poll a job until it completes, fails or times out",
	Long: `Poll a job with exponential backoff until it reaches a terminal status.

The command exits non-zero if the job fails, the timeout elapses or
the status endpoint keeps failing.

Examples:
  leapocr wait job_123
  leapocr wait job_123 --timeout 2m --result`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, cfg, err := newService(cmd)
		if err != nil {
			return err
		}

		opts := cfg.PollOptions()
		if waitTimeout > 0 {
			opts.Timeout = waitTimeout
		}
		if waitInterval > 0 {
			opts.Interval = waitInterval
			if opts.MaxInterval < waitInterval {
				opts.MaxInterval = waitInterval
			}
		}

		if waitResult {
			result, err := client.WaitForResult(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return newPrinter(cmd).Print(result)
		}

		job, err := client.WaitUntilDone(cmd.Context(), args[0], opts)
		if job != nil {
			if perr := newPrinter(cmd).Print(job); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "give up after this long (default from config)")
	waitCmd.Flags().DurationVar(&waitInterval, "interval", 0, "initial delay between polls (default from config)")
	waitCmd.Flags().BoolVar(&waitResult, "result", false, "fetch all result pages once the job completes")
}
