// Package commands implements the VeriLabel CLI command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/ocr"
	"github.com/verilabel-ai/verilabel/internal/pdf"
	"github.com/verilabel-ai/verilabel/internal/tesseract"
)

var (
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "verilabel-cli",
	Short: "VeriLabel CLI for pharmaceutical label extraction and verification",
	Long: `VeriLabel CLI extracts text from label images and PDFs and verifies
production labels against approved reference texts.

Use this tool to:
- Extract text from label images and multi-page PDFs
- Verify a production label against a stored or local reference text
- Score extracted text for structural authenticity

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logLevel := cfg.Observability.LogLevel
		if verbose {
			logLevel = "debug"
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      logFormat,
			ServiceName: "verilabel-cli",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// buildEngine wires the OCR engine from the loaded configuration, the same
// composition the API server uses.
func buildEngine() (*ocr.Engine, error) {
	var localOCR domain.LocalOCR
	if cfg.Providers.LocalModel.EnableTesseract {
		localOCR = tesseract.NewEngine(cfg.Providers.LocalModel.TesseractLanguages...)
	}

	engine := ocr.NewEngine(cfg, pdf.NewRasterizer(), localOCR, logger)
	if engine.State() == domain.EngineStateUnavailable {
		return nil, fmt.Errorf("no OCR engine available: set a cloud API key or ensure the local model server is running")
	}
	return engine, nil
}
