package llm

// HashEmbed derives a deterministic HashDim-dim unit vector from the character
// codes of text. It exists purely for liveness: identical inputs always map to
// identical vectors, so indexing and search remain consistent when no real
// embedding backend is reachable.
func HashEmbed(text string) []float32 {
	vec := make([]float32, HashDim)
	if text == "" {
		vec[0] = 1
		return vec
	}
	for i, r := range text {
		idx := (i + int(r)) % HashDim
		if idx < 0 {
			idx += HashDim
		}
		// Char-code driven magnitude with alternating sign keeps components
		// spread instead of all-positive.
		mag := float32(int(r)%17+1) / 17
		if (i+int(r))%2 == 0 {
			vec[idx] += mag
		} else {
			vec[idx] -= mag
		}
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		vec[0] = 1
		return vec
	}
	l2normalize(vec)
	return vec
}
