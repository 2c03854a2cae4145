package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/leapocr/ocr"
)

var (
	procFormat        string
	procTier          string
	procProjectID     string
	procSchemaID      string
	procInstructionID string
	procCategoryID    string
	procWebhookURL    string
	procWait          bool
	procSave          bool
)

var processCmd = &cobra.Command{
	Use:   "process <url|path>",
	Short: "Submit a document for OCR",
	Long: `Submit a document by public URL or local file path.

Without --wait the command prints the submitted job and returns
immediately; use "leapocr wait" or "leapocr result" later.

Examples:
  leapocr process https://example.com/invoice.pdf
  leapocr process ./scan.pdf --format text --wait
  leapocr process ./form.pdf --schema-id sch_123 --wait --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}

		opts := mergeProcessOptions(cfg.ProcessOptions())
		sub, err := svc.ProcessDocument(cmd.Context(), args[0], opts, procWait)
		if err != nil {
			if sub == nil {
				return err
			}
			// Keep the job ID visible when only the wait failed.
			if perr := newPrinter(cmd).Print(sub); perr != nil {
				return perr
			}
			return err
		}

		if procSave && sub.Result != nil {
			if err := saveResult(cmd, sub.Result); err != nil {
				return err
			}
		}
		return newPrinter(cmd).Print(sub)
	},
}

func init() {
	f := processCmd.Flags()
	f.StringVar(&procFormat, "format", "", "result format: structured, text, tables or forms")
	f.StringVar(&procTier, "tier", "", "model tier: core, premium or enterprise")
	f.StringVar(&procProjectID, "project-id", "", "project to file the job under")
	f.StringVar(&procSchemaID, "schema-id", "", "extraction schema ID")
	f.StringVar(&procInstructionID, "instruction-id", "", "extraction instruction ID")
	f.StringVar(&procCategoryID, "category-id", "", "document category ID")
	f.StringVar(&procWebhookURL, "webhook-url", "", "URL notified when the job finishes")
	f.BoolVar(&procWait, "wait", false, "wait for the job and fetch its result")
	f.BoolVar(&procSave, "save", false, "save the result under the home results directory (requires --wait)")
}

// mergeProcessOptions overlays non-empty flags on configured defaults.
func mergeProcessOptions(opts ocr.ProcessOptions) ocr.ProcessOptions {
	if procFormat != "" {
		opts.Format = ocr.Format(procFormat)
	}
	if procTier != "" {
		opts.Tier = ocr.Tier(procTier)
	}
	if procProjectID != "" {
		opts.ProjectID = procProjectID
	}
	if procSchemaID != "" {
		opts.SchemaID = procSchemaID
	}
	if procInstructionID != "" {
		opts.InstructionID = procInstructionID
	}
	if procCategoryID != "" {
		opts.CategoryID = procCategoryID
	}
	if procWebhookURL != "" {
		opts.WebhookURL = procWebhookURL
	}
	return opts
}
