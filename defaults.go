package frost

import (
	"io"

	"github.com/pasqal-io/frost/value"
	"golang.org/x/text/encoding"
)

// A codec using `DefaultOptions()` and `registry.Default`.
var Default = New(DefaultOptions())

func Freeze(v any) (string, error) {
	return Default.Freeze(v)
}

func FreezeTo(w io.Writer, v any, enc encoding.Encoding) error {
	return Default.FreezeTo(w, v, enc)
}

func Defrost(source string) (any, error) {
	return Default.Defrost(source)
}

func Parse(source string) (value.Value, error) {
	return Default.Parse(source)
}

func Beautify(source string) string {
	return Default.Beautify(source)
}

func BeautifyStream(in io.Reader, inEnc encoding.Encoding, out io.Writer, outEnc encoding.Encoding) error {
	return Default.BeautifyStream(in, inEnc, out, outEnc)
}
