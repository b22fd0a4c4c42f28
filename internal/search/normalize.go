package search

// Normalize rescales scores to [0,1] by min-max scaling, keeping length and
// order. When every score is equal (including a single score) all map to
// 1.0. An empty input yields an empty, non-nil slice. Scores must be finite.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}

	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}

	span := hi - lo
	for i, s := range scores {
		out[i] = (s - lo) / span
	}
	return out
}
