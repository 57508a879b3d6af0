package resolver

import (
	"strings"
	"unicode"

	"github.com/edirooss/ingestwatch/pkg/endpoint"
)

// Conventions are the naming markers that identify main and backup sources
// in input names, flow names and source addresses.
//
// Text is split into tokens at non-alphanumerics and at camelCase humps
// ("NewsBackup" is "news", "backup"). A marker matches a whole token. Markers
// of four or more characters also match with a numeric suffix ("backup2") or
// glued to one of Affixes ("newsmain", "mainfeed"). A marker inside a longer
// word ("mydomain", "remaining", "maintenance") never matches.
type Conventions struct {
	MainMarkers   []string
	BackupMarkers []string
	Affixes       []string
}

// DefaultConventions returns the stock marker sets.
func DefaultConventions() Conventions {
	return Conventions{
		MainMarkers:   []string{"main", "primary", "pri", "a"},
		BackupMarkers: []string{"backup", "bak", "secondary", "sec", "b"},
		Affixes: []string{
			"news", "feed", "stream", "src", "source", "input", "signal",
			"line", "link", "uplink", "live", "path", "ingest", "push", "pull",
			"enc", "encoder", "cam", "ch", "channel",
		},
	}
}

const compoundMarkerLen = 4

// ClassifyName returns the source type a display name points at. Backup
// markers are checked first since "main" names rarely carry them.
func (c Conventions) ClassifyName(name string) Verdict {
	return c.classifyTokens(wordTokens(strings.TrimSpace(name)))
}

// ClassifyAddress returns the source type an upstream address points at.
// Host labels are inspected first (region/pipeline suffixes such as
// "push-b"), then the remaining identifying tokens of the address.
func (c Conventions) ClassifyAddress(addr string) Verdict {
	var host []string
	for _, l := range endpoint.HostLabels(addr) {
		host = append(host, wordTokens(l)...)
	}
	if v := c.classifyTokens(host); v != None {
		return v
	}
	var tokens []string
	for _, t := range endpoint.Tokens(addr) {
		tokens = append(tokens, wordTokens(t)...)
	}
	return c.classifyTokens(tokens)
}

func (c Conventions) classifyTokens(tokens []string) Verdict {
	if c.anyMarker(tokens, c.BackupMarkers) {
		return Backup
	}
	if c.anyMarker(tokens, c.MainMarkers) {
		return Main
	}
	return None
}

func (c Conventions) anyMarker(tokens []string, markers []string) bool {
	for _, m := range markers {
		m = strings.ToLower(m)
		if m == "" {
			continue
		}
		for _, t := range tokens {
			if c.tokenHasMarker(t, m) {
				return true
			}
		}
	}
	return false
}

// tokenHasMarker reports whether lowercase token t carries marker m.
func (c Conventions) tokenHasMarker(t, m string) bool {
	if t == m {
		return true
	}
	if len(m) < compoundMarkerLen {
		return false
	}
	if rest, ok := strings.CutPrefix(t, m); ok {
		return isNumeric(rest) || c.isAffix(rest)
	}
	if rest, ok := strings.CutSuffix(t, m); ok {
		return c.isAffix(rest)
	}
	return false
}

func (c Conventions) isAffix(s string) bool {
	for _, a := range c.Affixes {
		if strings.EqualFold(s, a) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// wordTokens lowercases s and splits it at non-alphanumerics and at
// lower-to-upper case transitions.
func wordTokens(s string) []string {
	var (
		out  []string
		cur  []rune
		prev rune
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return out
}
