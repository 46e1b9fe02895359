package shingle

// Jaccard returns |a∩b| / |a∪b|, or 0 when either set is empty.
func Jaccard(a, b Set) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}

	small, large := a.items, b.items
	if len(small) > len(large) {
		small, large = large, small
	}

	intersection := 0
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}

	union := len(a.items) + len(b.items) - intersection
	return float64(intersection) / float64(union)
}

// AreSimilar reports whether Jaccard(a, b) reaches threshold.
func AreSimilar(a, b Set, threshold float64) bool {
	return Jaccard(a, b) >= threshold
}
