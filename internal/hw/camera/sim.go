package camera

// SimSource synthesizes frames whose sharpness depends on how close the
// simulated focus motor sits to the best focus for the current zoom. It
// renders a stripe pattern whose contrast falls off with focus error, so
// the Laplacian variance forms a smooth unimodal curve over focus.
type SimSource struct {
	W, H int

	// Position reports the simulated focus and zoom motor positions.
	Position func() (focus, zoom int)
	// BestFocus maps a zoom position to the focus that yields the
	// sharpest frame.
	BestFocus func(zoom int) int
	// Falloff controls how quickly contrast decays with focus error.
	// Zero defaults to 80 steps.
	Falloff float64
}

func (s *SimSource) Frame() (*Frame, error) {
	w, h := s.W, s.H
	if w <= 0 {
		w = 64
	}
	if h <= 0 {
		h = 48
	}

	focus, zoom := s.Position()
	d := float64(focus - s.BestFocus(zoom))
	falloff := s.Falloff
	if falloff <= 0 {
		falloff = 80
	}
	contrast := 100.0 / (1.0 + (d*d)/(falloff*falloff))

	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 128.0
			if x%2 == 0 {
				v += contrast
			} else {
				v -= contrast
			}
			pix[y*w+x] = uint8(v)
		}
	}
	return &Frame{Pix: pix, W: w, H: h}, nil
}
