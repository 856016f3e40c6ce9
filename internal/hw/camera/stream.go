package camera

import (
	"fmt"
	"io"
	"os"
)

// StreamSource reads fixed-size Y8 frames from a byte stream, typically a
// FIFO fed by the capture pipeline running alongside this process.
type StreamSource struct {
	r    io.ReadCloser
	w, h int
}

// OpenStream opens a raw Y8 frame stream at path with the given geometry.
// For a FIFO the open blocks until the producer connects.
func OpenStream(path string, w, h int) (*StreamSource, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("stream source: invalid geometry %dx%d", w, h)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame stream: %w", err)
	}
	return &StreamSource{r: f, w: w, h: h}, nil
}

// NewStreamSource wraps an already-open reader. Used by tests.
func NewStreamSource(r io.ReadCloser, w, h int) *StreamSource {
	return &StreamSource{r: r, w: w, h: h}
}

func (s *StreamSource) Frame() (*Frame, error) {
	pix := make([]uint8, s.w*s.h)
	if _, err := io.ReadFull(s.r, pix); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return &Frame{Pix: pix, W: s.w, H: s.h}, nil
}

func (s *StreamSource) Close() error {
	return s.r.Close()
}
