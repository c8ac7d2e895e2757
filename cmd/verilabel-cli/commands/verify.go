package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/verilabel-ai/verilabel/internal/compare"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/storage"
	"github.com/verilabel-ai/verilabel/internal/validate"
)

var (
	verifyControlID   string
	verifyControlFile string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify a production label against an approved reference text",
	Long: `Verify extracts text from a production label file, compares it word by
word against an approved reference text, and scores the extracted text
for structural authenticity.

The reference comes from either a stored control (--control-id) or a
local text file (--control-file).`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyControlID, "control-id", "", "ID of a stored verified label to compare against")
	verifyCmd.Flags().StringVar(&verifyControlFile, "control-file", "", "path to a text file holding the verified reference text")
	rootCmd.AddCommand(verifyCmd)
}

type verifyOutput struct {
	File       string                    `json:"file"`
	Control    string                    `json:"control"`
	Extraction *domain.RecognitionResult `json:"extraction"`
	Comparison compare.Result            `json:"comparison"`
	Validation validate.Result           `json:"validation"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	if (verifyControlID == "") == (verifyControlFile == "") {
		return fmt.Errorf("exactly one of --control-id or --control-file is required")
	}

	controlName, verifiedText, err := loadControlText(cmd)
	if err != nil {
		return err
	}

	engine, err := buildEngine()
	if err != nil {
		return err
	}

	var s interface{ Stop() }
	if !outputJSON {
		s = newSpinner("Extracting " + filepath.Base(args[0]))
	}
	result, err := extractFile(cmd.Context(), engine, args[0])
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", args[0], err)
	}

	out := verifyOutput{
		File:       args[0],
		Control:    controlName,
		Extraction: result,
		Comparison: compare.Texts(verifiedText, result.ExtractedText),
		Validation: validate.NewValidator().Text(result.ExtractedText),
	}

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	printHeader(fmt.Sprintf("Verification: %s vs %s", filepath.Base(args[0]), controlName))
	fmt.Printf("engine: %s (%s), %dms\n", result.EngineUsed, result.ModelName, result.ProcessingTimeMs)

	fmt.Printf("match: %.2f%% (%d verified / %d production words)\n",
		out.Comparison.MatchPercentage, out.Comparison.WordCount.Verified, out.Comparison.WordCount.Production)
	for _, dev := range out.Comparison.Deviations {
		printWarning("%s: %q", dev.Type, dev.Word)
	}

	fmt.Printf("authenticity: %d/100\n", out.Validation.AuthenticityScore)
	checks := []struct {
		name   string
		passed bool
	}{
		{"dosage format", out.Validation.DosageFormatValid},
		{"expiry date", out.Validation.ExpiryFormatValid},
		{"batch number", out.Validation.BatchNumberValid},
		{"manufacturer", out.Validation.ManufacturerPresent},
		{"drug name", out.Validation.DrugNameFormatValid},
	}
	for _, check := range checks {
		if !check.passed {
			printWarning("missing: %s", check.name)
		}
	}

	if out.Comparison.Status == "PASS" && out.Validation.IsStructurallyAuthentic {
		printSuccess("PASS")
		return nil
	}
	printFailure("FAIL")
	return fmt.Errorf("verification failed: match %s, authenticity %d/100",
		out.Comparison.Status, out.Validation.AuthenticityScore)
}

// loadControlText resolves the verified reference text from either the
// label store or a local file.
func loadControlText(cmd *cobra.Command) (name, text string, err error) {
	if verifyControlFile != "" {
		data, err := os.ReadFile(verifyControlFile)
		if err != nil {
			return "", "", fmt.Errorf("read control file: %w", err)
		}
		return filepath.Base(verifyControlFile), strings.TrimSpace(string(data)), nil
	}

	id, err := uuid.Parse(verifyControlID)
	if err != nil {
		return "", "", fmt.Errorf("invalid control id %q: %w", verifyControlID, err)
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return "", "", fmt.Errorf("open label store: %w", err)
	}
	defer store.Close()

	control, err := store.Get(cmd.Context(), id)
	if err != nil {
		return "", "", fmt.Errorf("load control %s: %w", id, err)
	}
	return control.ControlName, control.VerifiedText, nil
}
