package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract text from label images and PDFs",
	Long: `Extract runs OCR over one or more label files. Images are recognized
directly; PDFs are rasterized and processed page by page.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

// extractOutput is one file's result in --json mode.
type extractOutput struct {
	File   string                    `json:"file"`
	Result *domain.RecognitionResult `json:"result,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine()
	if err != nil {
		return err
	}

	outputs := make([]extractOutput, 0, len(args))

	if len(args) == 1 && !outputJSON {
		s := newSpinner("Extracting " + filepath.Base(args[0]))
		result, err := extractFile(cmd.Context(), engine, args[0])
		s.Stop()
		outputs = append(outputs, toOutput(args[0], result, err))
	} else {
		var bar interface{ Add(int) error }
		if !outputJSON {
			bar = newProgressBar(len(args), "Extracting labels")
		}
		for _, path := range args {
			result, err := extractFile(cmd.Context(), engine, path)
			outputs = append(outputs, toOutput(path, result, err))
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(outputs)
	}

	failures := 0
	for _, out := range outputs {
		printHeader(out.File)
		if out.Error != "" {
			printFailure("extraction failed: %s", out.Error)
			failures++
			continue
		}
		printSuccess("engine=%s model=%s elapsed=%dms", out.Result.EngineUsed, out.Result.ModelName, out.Result.ProcessingTimeMs)
		if out.Result.PagesProcessed > 0 {
			fmt.Printf("pages: %d\n", out.Result.PagesProcessed)
		}
		fmt.Println(out.Result.ExtractedText)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(outputs))
	}
	return nil
}

func extractFile(ctx context.Context, engine *ocr.Engine, path string) (*domain.RecognitionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return engine.ProcessPDF(ctx, data)
	}
	return engine.ProcessImage(ctx, data)
}

func toOutput(path string, result *domain.RecognitionResult, err error) extractOutput {
	out := extractOutput{File: path, Result: result}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
