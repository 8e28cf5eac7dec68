package utils

import "strings"

// MaskSecret keeps the first four runes of s.
func MaskSecret(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return "*****"
	}
	return string(r[:4]) + "*****"
}

// MaskUsername hides the local part of an email style username and keeps the domain.
func MaskUsername(s string) string {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return MaskSecret(s)
	}
	local := []rune(s[:at])
	keep := 2
	if len(local) <= keep {
		keep = 1
	}
	return string(local[:keep]) + "***" + s[at:]
}
