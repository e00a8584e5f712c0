package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// InstallWarningSink routes warnings raised through errors.Warn to a zerolog
// logger writing JSON lines to w (stderr when nil). Warnings that implement
// zerolog.LogObjectMarshaler are embedded field by field.
// The returned function uninstalls the sink.
func InstallWarningSink(w io.Writer) func() {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().
		Timestamp().
		Str(ComponentKey, "warnings").
		Logger()

	errors.SetZerologWarnFunc(func(warning error) {
		ev := zl.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(warning.Error())
	})
	return func() { errors.SetZerologWarnFunc(nil) }
}
