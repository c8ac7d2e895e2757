// Package pdf renders PDF documents into per-page raster images via MuPDF.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/verilabel-ai/verilabel/internal/domain"
)

// DefaultDPI is the rasterization density used when none is configured.
// 150 DPI keeps label text legible for recognition without inflating page
// images past what providers accept.
const DefaultDPI = 150

// Rasterizer renders PDF pages to in-memory PNG images.
type Rasterizer struct{}

var _ domain.Rasterizer = (*Rasterizer)(nil)

// NewRasterizer creates a new PDF rasterizer.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// Rasterize renders every page of the document at the requested density.
// Failures here mean the document itself is unreadable, so the error is a
// conversion failure rather than a recognition failure: switching providers
// cannot help and the caller must not fail over.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]domain.PageImage, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, domain.ConversionFailedError("failed to open PDF document", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ConversionFailedError("PDF has no pages", nil)
	}

	pages := make([]domain.PageImage, 0, pageCount)

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, float64(dpi))
		if err != nil {
			return nil, domain.ConversionFailedError(fmt.Sprintf("failed to render page %d", pageNum+1), err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, domain.ConversionFailedError(fmt.Sprintf("failed to encode page %d", pageNum+1), err)
		}

		bounds := img.Bounds()
		pages = append(pages, domain.PageImage{
			PageNumber: pageNum + 1,
			Data:       buf.Bytes(),
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	return pages, nil
}
