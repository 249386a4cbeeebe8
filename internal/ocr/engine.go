package ocr

import "context"

// Engine is a long-lived recognition worker. One Engine is created per
// extraction run, fed rendered pages in order, and closed when the run
// ends. Implementations are not safe for concurrent Recognize calls.
type Engine interface {
	// Recognize returns the text recognized in the given image bytes.
	Recognize(ctx context.Context, image []byte, mime string) (string, error)
	Close() error
}

// Factory creates a fresh Engine for one extraction run. The amortized
// setup cost (client dial, model load) happens here, not per page.
type Factory func(ctx context.Context) (Engine, error)
