// Package glob implements the small pattern language used for reserved key
// patterns, custom validation rule tables and key search: `*` matches any run
// of characters (including none), `?` matches exactly one character. All other
// characters match themselves.
package glob

// Match reports whether s matches pattern.
func Match(pattern, s string) bool {
	// Positions to resume from after the most recent `*`.
	var starPat, starStr = -1, 0
	pi, si := 0, 0

	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			starPat = pi
			starStr = si
			pi++
		case starPat >= 0:
			// Backtrack: let the last `*` consume one more character.
			starStr++
			pi = starPat + 1
			si = starStr
		default:
			return false
		}
	}

	// Only trailing stars may remain unconsumed.
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}

	return pi == len(pattern)
}

// MatchAny reports whether s matches at least one of the given patterns.
func MatchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if Match(p, s) {
			return true
		}
	}

	return false
}

// First returns the first pattern in patterns that s matches, or "" and false
// when none match.
func First(patterns []string, s string) (string, bool) {
	for _, p := range patterns {
		if Match(p, s) {
			return p, true
		}
	}

	return "", false
}
