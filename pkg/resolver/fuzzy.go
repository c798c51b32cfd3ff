package resolver

// Similarity scores how alike two strings are, as 1 minus the Levenshtein
// distance normalised by the longer length. 1 means identical, 0 means
// nothing in common. It is symmetric in its arguments.
func Similarity(a string, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	runesA := []rune(a)
	runesB := []rune(b)

	previous := make([]int, len(runesB)+1)
	current := make([]int, len(runesB)+1)

	for j := 0; j <= len(runesB); j++ {
		previous[j] = j
	}

	for i := 1; i <= len(runesA); i++ {
		current[0] = i

		for j := 1; j <= len(runesB); j++ {
			cost := 1
			if runesA[i-1] == runesB[j-1] {
				cost = 0
			}

			current[j] = min(previous[j]+1, current[j-1]+1, previous[j-1]+cost)
		}

		previous, current = current, previous
	}

	distance := previous[len(runesB)]
	longest := len(runesA)
	if len(runesB) > longest {
		longest = len(runesB)
	}

	return 1 - float64(distance)/float64(longest)
}
