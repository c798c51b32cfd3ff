package resolver

import "strings"

// Slugify normalises a stop name into its lookup key - lowercase, runs of
// non-alphanumeric characters collapsed to a single hyphen, no leading or
// trailing hyphens. "Forge Park/495" becomes "forge-park-495".
func Slugify(value string) string {
	var builder strings.Builder

	previousHyphen := true
	for _, character := range strings.ToLower(value) {
		if (character >= 'a' && character <= 'z') || (character >= '0' && character <= '9') {
			builder.WriteRune(character)
			previousHyphen = false
		} else if !previousHyphen {
			builder.WriteByte('-')
			previousHyphen = true
		}
	}

	return strings.TrimSuffix(builder.String(), "-")
}
