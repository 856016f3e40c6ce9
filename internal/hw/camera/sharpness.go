package camera

// LaplacianScorer rates focus quality as the variance of the 4-neighbour
// Laplacian over the frame. Defocused frames have weak edges, so the
// Laplacian response collapses toward zero and the variance drops.
type LaplacianScorer struct{}

func (LaplacianScorer) Score(f *Frame) float64 {
	if f == nil || f.W < 3 || f.H < 3 {
		return 0
	}

	n := (f.W - 2) * (f.H - 2)
	sum := 0.0
	sumSq := 0.0
	for y := 1; y < f.H-1; y++ {
		row := y * f.W
		for x := 1; x < f.W-1; x++ {
			i := row + x
			lap := 4*float64(f.Pix[i]) -
				float64(f.Pix[i-1]) - float64(f.Pix[i+1]) -
				float64(f.Pix[i-f.W]) - float64(f.Pix[i+f.W])
			sum += lap
			sumSq += lap * lap
		}
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
