package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/leapocr/internal/config"
	"github.com/jackzampolin/leapocr/internal/home"
	"github.com/jackzampolin/leapocr/internal/output"
	"github.com/jackzampolin/leapocr/ocr"
	"github.com/jackzampolin/leapocr/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
	apiKey       string
	baseURL      string
)

var rootCmd = &cobra.Command{
	Use:   "leapocr",
	Short: "Submit documents to LeapOCR and collect the results",
	Long: `leapocr submits documents to the LeapOCR API and waits for the
asynchronous OCR jobs to finish.

Documents can be public URLs or local files. Local files are uploaded
through a presigned URL (default) or as a direct multipart upload.

Configuration is read from ./config.yaml or ~/.leapocr/config.yaml and
can be overridden with LEAPOCR_* environment variables.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.leapocr/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "leapocr home directory (default: ~/.leapocr)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)
	rootCmd.PersistentFlags().StringVar(
		&apiKey, "api-key", "", "API key (overrides config and LEAPOCR_API_KEY)",
	)
	rootCmd.PersistentFlags().StringVar(
		&baseURL, "base-url", "", "API base URL (overrides config)",
	)

	// Reject a bad --output before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		_, err := output.ParseFormat(outputFormat)
		return err
	}

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger logs to stderr so stdout carries only command output.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
}

func newPrinter(cmd *cobra.Command) *output.Printer {
	format, _ := output.ParseFormat(outputFormat)
	return output.New(cmd.OutOrStdout(), format)
}

// loadConfig resolves the config file: --config, then the home directory's
// config.yaml when it exists, then the default search path.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" && homeDir != "" {
		h, err := home.New(homeDir)
		if err != nil {
			return nil, err
		}
		if h.ConfigExists() {
			path = h.ConfigPath()
		}
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}

// newService builds a client and document service from config and flags.
func newService(cmd *cobra.Command) (*ocr.Client, *ocr.Service, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	cc := cfg.ClientConfig(newLogger(cmd))
	if apiKey != "" {
		cc.APIKey = apiKey
	}
	if baseURL != "" {
		cc.BaseURL = baseURL
	}

	client, err := ocr.NewClient(cc)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingAPIKey) {
			return nil, nil, nil, fmt.Errorf("%w: set LEAPOCR_API_KEY or pass --api-key", err)
		}
		return nil, nil, nil, err
	}
	return client, ocr.NewService(client, cfg.PollOptions()), cfg, nil
}
