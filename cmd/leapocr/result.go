package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/leapocr/internal/home"
	"github.com/jackzampolin/leapocr/internal/output"
	"github.com/jackzampolin/leapocr/ocr"
)

var (
	resultPage  int
	resultLimit int
	resultAll   bool
	resultSave  bool
	resultText  bool
)

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Fetch the result of a completed job",
	Long: `Fetch the result of a completed job.

Results are paginated; by default one page of up to 100 pages is
returned. Use --all to walk every page.

Examples:
  leapocr result job_123
  leapocr result job_123 --page 2 --limit 10
  leapocr result job_123 --all --save -o json
  leapocr result job_123 --text`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, _, err := newService(cmd)
		if err != nil {
			return err
		}

		var result *ocr.JobResult
		if resultAll || resultText {
			result, err = client.GetAllResults(cmd.Context(), args[0])
		} else {
			result, err = client.GetJobResult(cmd.Context(), args[0], ocr.ResultPage{Page: resultPage, Limit: resultLimit})
		}
		if err != nil {
			return err
		}

		if resultSave {
			if err := saveResult(cmd, result); err != nil {
				return err
			}
		}
		if resultText {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Text())
			return err
		}
		return newPrinter(cmd).Print(result)
	},
}

func init() {
	resultCmd.Flags().IntVar(&resultPage, "page", 1, "result page to fetch")
	resultCmd.Flags().IntVar(&resultLimit, "limit", ocr.DefaultResultPageLimit, "document pages per result page")
	resultCmd.Flags().BoolVar(&resultAll, "all", false, "fetch and merge every result page")
	resultCmd.Flags().BoolVar(&resultSave, "save", false, "save the result under the home results directory")
	resultCmd.Flags().BoolVar(&resultText, "text", false, "print only the extracted text")
}

// saveResult writes a result in the current output format and logs the path.
func saveResult(cmd *cobra.Command, result *ocr.JobResult) error {
	h, err := home.New(homeDir)
	if err != nil {
		return err
	}
	format, _ := output.ParseFormat(outputFormat)
	data, err := output.Encode(format, result)
	if err != nil {
		return err
	}
	path, err := h.SaveResult(result.JobID, format.Ext(), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "saved result to %s\n", path)
	return nil
}
