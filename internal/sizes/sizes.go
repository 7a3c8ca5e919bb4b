// Package sizes normalizes clothing size tokens so that a scraped listing
// ("48", "サイズm") can be matched against a user's stored preferences ("M").
package sizes

import "strings"

// Many-to-one mapping of raw tokens to canonical letter codes. EU numeric
// sizes follow the usual menswear conversion.
var canonical = map[string]string{
	"s": "s", "small": "s", "44": "s", "46": "s", "サイズs": "s",
	"m": "m", "medium": "m", "48": "m", "50": "m", "サイズm": "m",
	"l": "l", "large": "l", "52": "l", "サイズl": "l",
	"xl": "xl", "x-large": "xl", "54": "xl", "サイズxl": "xl",
	"xxl": "xxl", "xx-large": "xxl", "56": "xxl", "サイズxxl": "xxl",
}

// Normalize maps a raw size token to its canonical code. Unrecognized
// tokens pass through lowercased so unusual sizes can still match exactly.
func Normalize(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	if std, ok := canonical[token]; ok {
		return std
	}
	return token
}

// NormalizeAll normalizes and deduplicates, preserving first-seen order.
func NormalizeAll(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		n := Normalize(r)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Match reports whether the two size lists share any canonical size.
func Match(found, wanted []string) bool {
	if len(found) == 0 || len(wanted) == 0 {
		return false
	}
	set := make(map[string]bool, len(found))
	for _, s := range NormalizeAll(found) {
		set[s] = true
	}
	for _, s := range NormalizeAll(wanted) {
		if set[s] {
			return true
		}
	}
	return false
}
