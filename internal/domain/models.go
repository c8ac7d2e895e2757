package domain

// MediaKind declares what a recognition request's byte buffer contains.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindPDF   MediaKind = "pdf"
)

// Engine role tags recorded on results so callers can tell which tier served
// a request.
const (
	EngineRolePrimary  = "primary"
	EngineRoleFallback = "fallback"
)

// Provider identifiers, in engine selection priority order.
const (
	ProviderCloudVision = "cloud-vision"
	ProviderCloudOCR    = "cloud-ocr"
	ProviderLocalModel  = "local-model"
)

// RecognitionRequest carries one document through the engine. It is immutable
// once created and owned exclusively by the call that created it.
type RecognitionRequest struct {
	Data []byte
	Kind MediaKind
	Ext  string // optional filename extension, used only for format checks at the boundary
}

// NewImageRequest builds a request for a single raster image.
func NewImageRequest(data []byte, ext string) RecognitionRequest {
	return RecognitionRequest{Data: data, Kind: MediaKindImage, Ext: ext}
}

// NewPDFRequest builds a request for a multi-page PDF document.
func NewPDFRequest(data []byte) RecognitionRequest {
	return RecognitionRequest{Data: data, Kind: MediaKindPDF, Ext: "pdf"}
}

// RecognitionResult is produced exactly once per successful request and never
// mutated afterwards; ownership transfers to the caller.
type RecognitionResult struct {
	ExtractedText    string `json:"extracted_text"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	ModelName        string `json:"model_name"`
	EngineUsed       string `json:"engine_used"`
	PagesProcessed   int    `json:"pages_processed,omitempty"`
}

// ProviderHealth is set once per provider at engine construction and is
// read-only afterwards; re-evaluated only on process restart.
type ProviderHealth struct {
	Available bool   `json:"available"`
	LastError string `json:"last_error,omitempty"`
}

// EngineState tracks the facade's startup outcome.
type EngineState string

const (
	EngineStateUninitialized EngineState = "uninitialized"
	EngineStateReady         EngineState = "ready"
	EngineStateDegraded      EngineState = "degraded"
	EngineStateUnavailable   EngineState = "unavailable"
)

// PageImage is a single rasterized PDF page.
type PageImage struct {
	PageNumber int // 1-based
	Data       []byte
	Width      int
	Height     int
}
