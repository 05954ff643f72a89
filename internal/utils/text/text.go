// Package text provides rune-aware helpers for delivery channels whose
// message limits are measured in characters rather than bytes.
package text

// CountRunes returns the number of Unicode code points in s. Channel caps
// (Telegram 4096, Discord 2000) count characters, so byte length
// overestimates any multi-byte text.
func CountRunes(s string) int {
	return len([]rune(s))
}

// Truncate shortens s to at most max runes, replacing the tail with suffix
// when it had to cut. The cut lands on a rune boundary, never inside a
// multi-byte character.
func Truncate(s string, max int, suffix string) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	keep := max - len([]rune(suffix))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + suffix
}
