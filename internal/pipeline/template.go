// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package pipeline

import (
	"strings"
	"unicode"
)

// Substitute replaces {user}, {message} and {mention} placeholders. Unknown
// placeholders and unbalanced braces pass through untouched, so user templates
// cannot break formatting.
func Substitute(template string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			b.WriteString(template)
			return b.String()
		}
		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			b.WriteString(template)
			return b.String()
		}
		end += open

		b.WriteString(template[:open])
		name := template[open+1 : end]
		if val, ok := vars[name]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(template[open : end+1])
		}
		template = template[end+1:]
	}
}

// SanitizeForSpeech strips emoji and other symbol runes that TTS engines
// read out loud or choke on, then collapses the leftover whitespace.
func SanitizeForSpeech(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isSpeechNoise(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isSpeechNoise(r rune) bool {
	switch {
	case r == 0x200D || r == 0xFE0E || r == 0xFE0F: // ZWJ, variation selectors
		return true
	case r >= 0x1F000 && r <= 0x1FAFF: // emoji, pictographs, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case unicode.Is(unicode.Sk, r):
		return true
	}
	return false
}
