package validator

import "sort"

// closeMatches returns up to n candidates from pool whose similarity ratio to
// target is at least cutoff, ordered by descending ratio. This reproduces the
// cutoff semantics of Python's difflib.get_close_matches (used by the
// original validator), which no Go edit-distance library replicates exactly
// — see DESIGN.md for why this is implemented directly rather than pulled
// from a third-party package.
func closeMatches(target string, pool []string, cutoff float64, n int) []string {
	type scored struct {
		s string
		r float64
	}

	var candidates []scored
	for _, p := range pool {
		r := ratio(target, p)
		if r >= cutoff {
			candidates = append(candidates, scored{p, r})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].r > candidates[j].r
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.s
	}
	return out
}

// ratio computes a similarity score in [0,1] equivalent to
// difflib.SequenceMatcher(None, a, b).ratio(): twice the number of matching
// characters (found via the longest common subsequence of non-overlapping
// matching blocks), divided by the total length of both strings.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	matches := matchingBlockLength([]rune(lower(a)), []rune(lower(b)))
	return 2.0 * float64(matches) / float64(len([]rune(a))+len([]rune(b)))
}

func lower(s string) string {
	r := []rune(s)
	for i, c := range r {
		if c >= 'A' && c <= 'Z' {
			r[i] = c - 'A' + 'a'
		}
	}
	return string(r)
}

// matchingBlockLength recursively finds the longest matching block between a
// and b, then recurses on the unmatched left and right remainders, summing
// their matched lengths — the same recursive strategy difflib's
// SequenceMatcher.get_matching_blocks uses.
func matchingBlockLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	bestLen, bestI, bestJ := 0, 0, 0

	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			if a[i] != b[j] {
				continue
			}
			l := 0
			for i+l < len(a) && j+l < len(b) && a[i+l] == b[j+l] {
				l++
			}
			if l > bestLen {
				bestLen, bestI, bestJ = l, i, j
			}
		}
	}

	if bestLen == 0 {
		return 0
	}

	return bestLen +
		matchingBlockLength(a[:bestI], b[:bestJ]) +
		matchingBlockLength(a[bestI+bestLen:], b[bestJ+bestLen:])
}
