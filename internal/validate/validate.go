// Package validate checks extracted label text for structural authenticity
// using deterministic regex rules: no model calls, no image processing. It
// verifies the text merely looks like a real pharmaceutical label; it says
// nothing about whether the label's content is correct.
package validate

import "regexp"

// Points per passed check; a text is structurally authentic at or above
// AuthenticThreshold.
const (
	checkPoints        = 20
	AuthenticThreshold = 70
)

// Result reports the individual checks and the combined score.
type Result struct {
	DosageFormatValid       bool `json:"dosage_format_valid"`
	ExpiryFormatValid       bool `json:"expiry_format_valid"`
	BatchNumberValid        bool `json:"batch_number_valid"`
	ManufacturerPresent     bool `json:"manufacturer_present"`
	DrugNameFormatValid     bool `json:"drug_name_format_valid"`
	AuthenticityScore       int  `json:"authenticity_score"`
	IsStructurallyAuthentic bool `json:"is_structurally_authentic"`
}

// Validator holds the compiled label patterns. Safe for concurrent use.
type Validator struct {
	dosage       []*regexp.Regexp
	expiry       []*regexp.Regexp
	batchLabel   *regexp.Regexp
	batchNumber  *regexp.Regexp
	manufacturer *regexp.Regexp
	drugName     *regexp.Regexp
}

// NewValidator compiles the validation patterns.
func NewValidator() *Validator {
	return &Validator{
		dosage: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s?(mg|ml|g|mcg)\b`),
			regexp.MustCompile(`(?i)\b\d+\s?(tablets?|capsules?)\b`),
		},
		expiry: []*regexp.Regexp{
			regexp.MustCompile(`\b(0[1-9]|1[0-2])/\d{4}\b`),
			regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`),
			regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s\d{4}\b`),
		},
		batchLabel:   regexp.MustCompile(`(?i)\b(Batch|LOT|Lot No\.?)\b`),
		batchNumber:  regexp.MustCompile(`\b[A-Z0-9]{6,12}\b`),
		manufacturer: regexp.MustCompile(`(?i)\b(Manufactured by|Marketed by|Distributed by)\b`),
		drugName:     regexp.MustCompile(`\b[A-Z][a-zA-Z]+\s\d+(\.\d+)?\s?(mg|ml|g|mcg)\b`),
	}
}

// Text scores the extracted text. Each of the five checks is worth 20
// points; a batch number counts only when both a batch keyword and a 6-12
// character alphanumeric token are present.
func (v *Validator) Text(extracted string) Result {
	if extracted == "" {
		return Result{}
	}

	r := Result{
		DosageFormatValid:   matchAny(v.dosage, extracted),
		ExpiryFormatValid:   matchAny(v.expiry, extracted),
		BatchNumberValid:    v.batchLabel.MatchString(extracted) && v.batchNumber.MatchString(extracted),
		ManufacturerPresent: v.manufacturer.MatchString(extracted),
		DrugNameFormatValid: v.drugName.MatchString(extracted),
	}

	for _, passed := range []bool{
		r.DosageFormatValid,
		r.ExpiryFormatValid,
		r.BatchNumberValid,
		r.ManufacturerPresent,
		r.DrugNameFormatValid,
	} {
		if passed {
			r.AuthenticityScore += checkPoints
		}
	}

	r.IsStructurallyAuthentic = r.AuthenticityScore >= AuthenticThreshold
	return r
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
