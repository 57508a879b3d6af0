package jsonx

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestFlexDecoding(t *testing.T) {
	var v struct {
		A Int    `json:"a"`
		B Int    `json:"b"`
		C Int    `json:"c"`
		P String `json:"p"`
		Q String `json:"q"`
		N String `json:"n"`
	}
	in := `{"a": 329, "b": "330", "c": null, "p": 0, "q": "1", "n": null}`
	if err := json.Unmarshal([]byte(in), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.A != 329 || v.B != 330 || v.C != 0 {
		t.Fatalf("ints = %d %d %d", v.A, v.B, v.C)
	}
	if v.P != "0" || v.Q != "1" || v.N != "" {
		t.Fatalf("strings = %q %q %q", v.P, v.Q, v.N)
	}

	var bad struct {
		A Int `json:"a"`
	}
	if err := json.Unmarshal([]byte(`{"a": "abc"}`), &bad); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}

func TestOptionalPresence(t *testing.T) {
	var v struct {
		Data Optional[map[string]any] `json:"data"`
		Gone Optional[string]         `json:"gone"`
		Null Optional[string]         `json:"null"`
	}
	if err := json.Unmarshal([]byte(`{"data": {"x": 1}, "null": null}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if data, ok := v.Data.Get(); !v.Data.Present() || !ok || data["x"] != float64(1) {
		t.Fatalf("data = %v, present=%v", data, v.Data.Present())
	}
	if v.Gone.Present() {
		t.Fatalf("gone should be absent")
	}
	if _, ok := v.Null.Get(); !v.Null.Null() || ok {
		t.Fatalf("null should be present and null")
	}
}

func TestReadBody(t *testing.T) {
	if _, err := ReadBody(strings.NewReader("  \n"), 0); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("err = %v, want ErrEmptyBody", err)
	}
	if _, err := ReadBody(strings.NewReader("0123456789"), 4); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
	b, err := ReadBody(strings.NewReader(`{"a":1}`), 0)
	if err != nil || string(b) != `{"a":1}` {
		t.Fatalf("ReadBody = %q, %v", b, err)
	}
}
