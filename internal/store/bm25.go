package store

import "math"

// bm25IDF is ln((N - df + 0.5) / (df + 0.5) + 1). It is non-negative for
// df <= N and non-increasing in df.
func bm25IDF(n, df int) float64 {
	return math.Log((float64(n-df)+0.5)/(float64(df)+0.5) + 1)
}

// bm25TF is tf * (k1 + 1) / (tf + k1 * lengthNorm) where
// lengthNorm = 1 - b + b * docLen / avgDocLen. With no average length
// (empty corpus or all-empty documents) lengthNorm is 1.
func bm25TF(tf, docLen int, avgDocLen, k1, b float64) float64 {
	if tf == 0 {
		return 0
	}
	lengthNorm := 1.0
	if avgDocLen > 0 {
		lengthNorm = 1 - b + b*(float64(docLen)/avgDocLen)
	}
	f := float64(tf)
	return f * (k1 + 1) / (f + k1*lengthNorm)
}

// classicIDF is ln((N + 1) / (df + 1)).
func classicIDF(n, df int) float64 {
	return math.Log(float64(n+1) / float64(df+1))
}
