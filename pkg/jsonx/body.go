package jsonx

import (
	"bytes"
	"errors"
	"io"
)

var (
	ErrEmptyBody    = errors.New("empty body")
	ErrBodyTooLarge = errors.New("body too large")
)

// DefaultBodyLimit caps request bodies read by ReadBody.
const DefaultBodyLimit = 1 << 20

// ReadBody reads at most limit bytes from r (DefaultBodyLimit when limit <= 0).
// A body that is empty or only whitespace yields ErrEmptyBody; one larger
// than limit yields ErrBodyTooLarge.
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	return body, nil
}
