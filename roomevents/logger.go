package roomevents

import (
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// NewStumpyLogger builds a type-erased logiface logger backed by stumpy's
// direct JSON encoder, suitable for WithLogger. level controls the minimum
// level that will actually be written.
func NewStumpyLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}
