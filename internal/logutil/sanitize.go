package logutil

import (
	"strings"
	"unicode/utf8"
)

// maxLogField bounds how much of a single untrusted value reaches the log.
const maxLogField = 256

// SanitizeForLog removes newlines and control characters from values that
// come from profiles, import files or remote peers, so a crafted name cannot
// forge extra log lines. Long values are cut at maxLogField runes.
func SanitizeForLog(s string) string {
	s = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(s)
	var result strings.Builder
	result.Grow(len(s))
	n := 0
	for _, r := range s {
		if r < 32 || r == 127 {
			continue
		}
		if n == maxLogField {
			result.WriteString("...")
			break
		}
		result.WriteRune(r)
		n++
	}
	return result.String()
}

// DescribeBytes renders a terminal payload for debug logs: printable ASCII
// is kept and everything else is shown as \xNN.
func DescribeBytes(p []byte) string {
	var b strings.Builder
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		if r >= 32 && r < 127 {
			b.WriteRune(r)
		} else {
			for _, c := range p[:size] {
				b.WriteString(`\x`)
				b.WriteByte("0123456789abcdef"[c>>4])
				b.WriteByte("0123456789abcdef"[c&0xf])
			}
		}
		p = p[size:]
		if b.Len() > maxLogField {
			b.WriteString("...")
			break
		}
	}
	return b.String()
}
