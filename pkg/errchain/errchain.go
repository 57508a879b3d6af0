// Package errchain renders an error's wrap chain as a structured zap field,
// one entry per layer, for debug output of command-line tools.
package errchain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                4,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Layer is one error in a chain. Depth counts wraps from the outermost
// error; joined errors share their parent's depth + 1.
type Layer struct {
	Depth int
	Type  string
	Msg   string
	Dump  string
}

func (l Layer) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("depth", l.Depth)
	enc.AddString("type", l.Type)
	enc.AddString("error", l.Msg)
	if l.Dump != "" {
		enc.AddString("dump", l.Dump)
	}
	return nil
}

type layers []Layer

func (ls layers) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, l := range ls {
		if err := enc.AppendObject(l); err != nil {
			return err
		}
	}
	return nil
}

// Walk flattens err depth-first, following both Unwrap() error and
// Unwrap() []error. With dump set each layer carries a spew dump.
func Walk(err error, dump bool) []Layer {
	var out []Layer
	var walk func(e error, depth int)
	walk = func(e error, depth int) {
		for ; e != nil; depth++ {
			l := Layer{Depth: depth, Type: fmt.Sprintf("%T", e), Msg: e.Error()}
			if dump {
				l.Dump = strings.TrimSpace(dumper.Sdump(e))
			}
			out = append(out, l)

			if j, ok := e.(interface{ Unwrap() []error }); ok {
				for _, inner := range j.Unwrap() {
					walk(inner, depth+1)
				}
				return
			}
			e = errors.Unwrap(e)
		}
	}
	walk(err, 0)
	return out
}

// Field is a zap field holding the dumped chain of err.
func Field(err error) zap.Field {
	return zap.Array("error_chain", layers(Walk(err, true)))
}
