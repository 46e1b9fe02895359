package story

// SelectCanonical picks the member with the lowest source priority, then the
// earliest effective time. Remaining ties go to the lowest ingestion index
// and finally the lexically smallest canonical URL.
func SelectCanonical(members []Record) (Record, error) {
	if len(members) == 0 {
		return Record{}, ErrEmptyCluster
	}

	best := members[0]
	for _, candidate := range members[1:] {
		if preferred(candidate, best) {
			best = candidate
		}
	}
	return best, nil
}

func preferred(a, b Record) bool {
	if pa, pb := a.SourceType.Priority(), b.SourceType.Priority(); pa != pb {
		return pa < pb
	}
	ta, tb := a.EffectiveTime(), b.EffectiveTime()
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.CanonicalURL < b.CanonicalURL
}
