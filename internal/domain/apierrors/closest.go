package apierrors

// ClosestMatch returns the option most similar to value, ranked by the
// similarity ratio 2*LCS(a, b) / (len(a) + len(b)). Ties keep the first
// highest-scoring option, so callers should pass options in a stable order.
func ClosestMatch(value string, options []string) string {
	maxRatio := 0.0
	match := ""

	for _, option := range options {
		if ratio := similarity(value, option); ratio > maxRatio {
			maxRatio = ratio
			match = option
		}
	}

	return match
}

func similarity(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 2 * float64(lcsLength(a, b)) / float64(len(a)+len(b))
}

func lcsLength(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
