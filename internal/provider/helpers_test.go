package provider

import (
	"io"

	"github.com/verilabel-ai/verilabel/internal/observability"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       "error",
		Output:      io.Discard,
		ServiceName: "test",
	})
}
