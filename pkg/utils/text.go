package utils

// Truncate returns s truncated to at most maxLen runes, with "..." appended
// if anything was cut. Truncation happens at rune boundaries so multi-byte
// characters are never split. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
