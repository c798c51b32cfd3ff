package resolver

import (
	"errors"
	"strings"
)

// ErrNotFound reports that no indexed stop matched the input. It is a normal
// outcome of resolution, distinct from any upstream failure.
var ErrNotFound = errors.New("no matching stop")

// Matches below this similarity are rejected rather than guessed at
const similarityThreshold = 0.6

// Resolve turns free text into an indexed stop. Matching is attempted in
// strict priority order - exact slug, substring in either direction, then
// fuzzy - and the first tier producing a match wins.
func (index *StopIndex) Resolve(input string) (Stop, error) {
	slug := Slugify(input)
	if slug == "" {
		return Stop{}, ErrNotFound
	}

	if position, ok := index.bySlug[slug]; ok {
		return index.Stops[position], nil
	}

	if stop, ok := index.substringMatch(slug); ok {
		return stop, nil
	}

	if stop, ok := index.fuzzyMatch(slug); ok {
		return stop, nil
	}

	return Stop{}, ErrNotFound
}

// Search returns up to limit candidate stops for a discovery query, ordered
// by the same tiers Resolve uses.
func (index *StopIndex) Search(input string, limit int) []Stop {
	slug := Slugify(input)
	if slug == "" {
		return nil
	}

	var results []Stop
	seen := map[string]bool{}

	appendStop := func(stop Stop) {
		if !seen[stop.ID] && len(results) < limit {
			seen[stop.ID] = true
			results = append(results, stop)
		}
	}

	if position, ok := index.bySlug[slug]; ok {
		appendStop(index.Stops[position])
	}

	for _, stop := range index.substringCandidates(slug) {
		appendStop(stop)
	}

	if len(results) == 0 {
		if stop, ok := index.fuzzyMatch(slug); ok {
			appendStop(stop)
		}
	}

	return results
}

func (index *StopIndex) substringMatch(slug string) (Stop, bool) {
	candidates := index.substringCandidates(slug)
	if len(candidates) == 0 {
		return Stop{}, false
	}

	return candidates[0], true
}

// substringCandidates returns stops whose slug contains the query or is
// contained by it, closest length first, index order breaking ties.
func (index *StopIndex) substringCandidates(slug string) []Stop {
	var candidates []Stop
	var distances []int

	for _, stop := range index.Stops {
		if !strings.Contains(stop.Slug, slug) && !strings.Contains(slug, stop.Slug) {
			continue
		}

		distance := len(stop.Slug) - len(slug)
		if distance < 0 {
			distance = -distance
		}

		insertAt := len(candidates)
		for insertAt > 0 && distances[insertAt-1] > distance {
			insertAt--
		}

		candidates = append(candidates, Stop{})
		distances = append(distances, 0)
		copy(candidates[insertAt+1:], candidates[insertAt:])
		copy(distances[insertAt+1:], distances[insertAt:])
		candidates[insertAt] = stop
		distances[insertAt] = distance
	}

	return candidates
}

func (index *StopIndex) fuzzyMatch(slug string) (Stop, bool) {
	bestScore := similarityThreshold
	bestPosition := -1

	for position, stop := range index.Stops {
		if score := Similarity(slug, stop.Slug); score > bestScore {
			bestScore = score
			bestPosition = position
		}
	}

	if bestPosition < 0 {
		return Stop{}, false
	}

	return index.Stops[bestPosition], true
}
