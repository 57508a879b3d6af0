// Package endpoint canonicalizes transport endpoint strings (push/pull URLs,
// host:port pairs, stream keys) so that two views of the same ingest path can
// be compared without protocol-specific syntax noise.
//
// All functions are pure and safe for concurrent use.
package endpoint

import (
	"strings"
	"unicode"
)

// ignoredTokens are scheme names and well-known default ports that never
// identify a particular stream on their own.
var ignoredTokens = map[string]struct{}{
	"rtmp":      {},
	"rtmps":     {},
	"srt":       {},
	"rtmp_pull": {},
	"rtp":       {},
	"udp":       {},
	"hls":       {},
	"http":      {},
	"https":     {},
	"live":      {},
	"1935":      {},
	"57716":     {},
}

// Normalize returns the canonical comparison form of raw:
// surrounding whitespace and path separators removed, lowercased, and every run
// of '/' collapsed into a single separator.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToLower(raw)

	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}

	// Trim spaces and separators together; trimming one class may expose the other.
	return strings.TrimFunc(b.String(), func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
}

// Tokens splits the normalized form of raw on ':', '/', '@' and '?' and drops
// empty tokens as well as scheme/port tokens that carry no identity.
func Tokens(raw string) []string {
	norm := Normalize(raw)
	if norm == "" {
		return nil
	}

	parts := strings.FieldsFunc(norm, func(r rune) bool {
		switch r {
		case ':', '/', '@', '?':
			return true
		}
		return false
	})

	out := parts[:0]
	for _, p := range parts {
		if _, skip := ignoredTokens[p]; skip {
			continue
		}
		out = append(out, p)
	}
	return out
}

// StreamKey returns the last identifying token of raw (typically the RTMP
// stream name or SRT stream id), or "" when nothing identifying remains.
func StreamKey(raw string) string {
	tokens := Tokens(raw)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}
