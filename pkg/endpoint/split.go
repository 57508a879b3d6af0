package endpoint

import (
	"errors"
	"fmt"
	"strings"
)

// Parts is the structural view of a transport address.
type Parts struct {
	Scheme   string `json:"scheme"`
	Userinfo string `json:"userinfo"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Path     string `json:"path"` // includes query/fragment
}

type layout struct {
	hasScheme bool
	slashNum  int
	hasAtSign bool
	hasBrks   bool
	hasPort   bool
	junk      string
}

// Split breaks an address into scheme, userinfo, host, port and path the way
// FFmpeg's av_url_split does (port kept as the raw substring, IPv6 brackets
// stripped). A string without ':' is returned as a bare path.
//
// Addresses without a scheme but with a port ("10.0.0.1:5000") split with the
// host in Scheme; use SplitHostAddr for those.
func Split(raw string) Parts {
	p, _ := split(raw)
	return p
}

// SplitHostAddr splits addresses that may or may not carry a scheme. A leading
// "host:port" is detected when everything after the first ':' is digits up to
// the first '/', '?' or end.
func SplitHostAddr(raw string) Parts {
	if colon := strings.IndexByte(raw, ':'); colon > 0 {
		rest := raw[colon+1:]
		end := strcspn(rest, "/?#")
		if end > 0 && isDigits(rest[:end]) {
			return Parts{Host: raw[:colon], Port: rest[:end], Path: rest[end:]}
		}
	}
	return Split(raw)
}

// Parse is Split with a round-trip check: the parts must re-join into raw
// and no junk may follow an IPv6 literal.
func Parse(raw string) (Parts, error) {
	p, l := split(raw)
	if join(p, l) != raw {
		return Parts{}, errors.New("unable to parse address")
	}
	if l.junk != "" {
		return Parts{}, fmt.Errorf("invalid address: unexpected %q after host", l.junk)
	}
	return p, nil
}

// HostLabels returns the lowercase labels of the address host split on '.'
// and '-', e.g. "push-b.example.com" -> [push b example com].
func HostLabels(raw string) []string {
	host := strings.ToLower(SplitHostAddr(strings.TrimSpace(raw)).Host)
	if host == "" {
		return nil
	}
	return strings.FieldsFunc(host, func(r rune) bool { return r == '.' || r == '-' })
}

func split(url string) (p Parts, l layout) {
	var cursor int

	// scheme: everything up to the first ':'; then up to two '/'
	colon := strings.IndexByte(url, ':')
	if colon == -1 {
		p.Path = url
		return
	}
	l.hasScheme = true
	p.Scheme = url[:colon]
	cursor = colon + 1
	for i := 0; i < 2; i++ {
		if cursor == len(url) {
			return
		}
		if url[cursor] != '/' {
			break
		}
		cursor++
		l.slashNum++
	}
	if cursor == len(url) {
		return
	}

	// authority ends at the first '/', '?' or '#'
	pathAt := cursor + strcspn(url[cursor:], "/?#")
	p.Path = url[pathAt:]
	if pathAt == cursor {
		return
	}

	// userinfo runs up to the last '@' of the authority
	userinfoAt := cursor
	for {
		rel := strings.IndexByte(url[cursor:pathAt], '@')
		if rel == -1 {
			break
		}
		l.hasAtSign = true
		abs := cursor + rel
		p.Userinfo = url[userinfoAt:abs]
		cursor = abs + 1
		if cursor == len(url) {
			return
		}
	}

	if brk := strings.IndexByte(url[cursor:pathAt], ']'); brk != -1 && url[cursor] == '[' {
		l.hasBrks = true
		abs := cursor + brk
		p.Host = url[cursor+1 : abs]
		cursor = abs + 1
		if cursor == len(url) {
			return
		}
		if url[cursor] == ':' {
			l.hasPort = true
			p.Port = url[cursor+1 : pathAt]
		} else if cursor != pathAt {
			l.junk = url[cursor:pathAt]
		}
		return
	}

	if rel := strings.IndexByte(url[cursor:pathAt], ':'); rel != -1 {
		l.hasPort = true
		abs := cursor + rel
		p.Host = url[cursor:abs]
		p.Port = url[abs+1 : pathAt]
		return
	}

	p.Host = url[cursor:pathAt]
	return
}

func join(p Parts, l layout) string {
	var b strings.Builder
	b.WriteString(p.Scheme)
	if l.hasScheme {
		b.WriteByte(':')
	}
	b.WriteString(strings.Repeat("/", l.slashNum))
	b.WriteString(p.Userinfo)
	if l.hasAtSign {
		b.WriteByte('@')
	}
	if l.hasBrks {
		b.WriteString("[" + p.Host + "]")
	} else {
		b.WriteString(p.Host)
	}
	if l.hasPort {
		b.WriteByte(':')
	}
	b.WriteString(p.Port)
	b.WriteString(l.junk)
	b.WriteString(p.Path)
	return b.String()
}

// strcspn returns the length of the initial segment of s that contains none
// of the bytes in reject.
func strcspn(s, reject string) int {
	if idx := strings.IndexAny(s, reject); idx != -1 {
		return idx
	}
	return len(s)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
