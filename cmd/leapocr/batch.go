package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/leapocr/ocr"
)

var (
	batchConcurrency int
	batchWait        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <url|path>...",
	Short: "Submit several documents concurrently",
	Long: `Submit several documents, at most --concurrency at a time.

A failing document does not stop the others. The command prints one
entry per source in input order and exits non-zero if any failed.

Examples:
  leapocr batch a.pdf b.pdf https://example.com/c.pdf
  leapocr batch scans/*.pdf --wait --concurrency 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}

		bopts := ocr.BatchOptions{
			MaxConcurrent: cfg.Batch.MaxConcurrent,
			Wait:          batchWait,
		}
		if batchConcurrency > 0 {
			bopts.MaxConcurrent = batchConcurrency
		}

		items := svc.BatchProcess(cmd.Context(), args, mergeProcessOptions(cfg.ProcessOptions()), bopts)
		if err := newPrinter(cmd).Print(items); err != nil {
			return err
		}

		failed := 0
		for _, it := range items {
			if it.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(items))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "documents in flight at once (default from config)")
	batchCmd.Flags().BoolVar(&batchWait, "wait", false, "wait for every job and fetch its result")
	batchCmd.Flags().StringVar(&procFormat, "format", "", "result format: structured, text, tables or forms")
	batchCmd.Flags().StringVar(&procTier, "tier", "", "model tier: core, premium or enterprise")
	batchCmd.Flags().StringVar(&procSchemaID, "schema-id", "", "extraction schema ID")
}
