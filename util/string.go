package util

// Levenshtein returns the edit distance between a and b.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// ClosestMatch returns the candidate with the smallest edit distance to target,
// as long as that distance is at most maxDistance. ok is false otherwise.
func ClosestMatch(target string, candidates []string, maxDistance int) (match string, ok bool) {
	best := maxDistance + 1
	for _, candidate := range candidates {
		d := Levenshtein(target, candidate)
		if d < best {
			best = d
			match = candidate
		}
	}
	return match, best <= maxDistance
}
