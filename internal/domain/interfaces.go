package domain

import "context"

// Provider turns a single image into recognized text against one backend's
// wire protocol. Providers never see whole PDFs; page splitting happens in
// the scheduler.
type Provider interface {
	// Name returns the provider identifier (e.g. "cloud-vision").
	Name() string

	// Model returns the model identifier recorded on results.
	Model() string

	// RecognizeImage extracts text from one image. An empty extraction is an
	// error, never a silent empty result.
	RecognizeImage(ctx context.Context, image []byte) (string, error)
}

// Rasterizer converts a PDF into ordered page images at the given DPI.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, dpi int) ([]PageImage, error)
}

// LocalOCR is the deterministic last-resort recognizer embedded in the
// local-model provider.
type LocalOCR interface {
	Recognize(image []byte) (string, error)
}
