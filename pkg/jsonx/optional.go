package jsonx

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Optional[T] records whether a key was present in the decoded object, so a
// wrapper key ({"data": {...}}) can be told apart from a bare payload and from
// an explicit {"data": null}.
type Optional[T any] struct {
	present bool
	val     *T
}

// Present reports whether the key appeared, null included.
func (o Optional[T]) Present() bool { return o.present }

// Null reports whether the key appeared with a JSON null.
func (o Optional[T]) Null() bool { return o.present && o.val == nil }

// Get returns the decoded value; ok is false when the key was absent or null.
func (o Optional[T]) Get() (v T, ok bool) {
	if o.val == nil {
		return v, false
	}
	return *o.val, true
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.present = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.val = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.val = &v
	return nil
}
