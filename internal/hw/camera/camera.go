package camera

// Frame is a single grayscale frame from the capture pipeline.
// Pix holds W*H bytes in row-major order.
type Frame struct {
	Pix  []uint8
	W, H int
}

// Source is the high-level interface to the capture collaborator. How the
// frames are produced (picamera pipeline, FIFO, synthetic) is not this
// package's concern.
type Source interface {
	// Frame returns the most recent frame. Blocks until one is available.
	Frame() (*Frame, error)
}

// Scorer rates the focus quality of a frame. Higher is sharper.
type Scorer interface {
	Score(f *Frame) float64
}
