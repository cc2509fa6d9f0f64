package value

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// A decoder for UTF-8 that switches to UTF-16 if it finds the corresponding
// byte-order mark, and strips the mark.
func sniffingDecoder() transform.Transformer {
	return unicode.BOMOverride(unicode.UTF8.NewDecoder())
}

func hasBOM(buf []byte) bool {
	return bytes.HasPrefix(buf, bomUTF8) || bytes.HasPrefix(buf, bomUTF16BE) || bytes.HasPrefix(buf, bomUTF16LE)
}

// Parse a byte buffer into a Value.
//
// The buffer is assumed to be UTF-8, unless it starts with a byte-order mark.
func DecodeBytes(buf []byte) (Value, error) {
	if hasBOM(buf) {
		decoded, _, err := transform.Bytes(sniffingDecoder(), buf)
		if err != nil {
			return Value{}, fmt.Errorf("failed to decode source:\n\t * %w", err) //nolint:exhaustruct
		}
		buf = decoded
	}
	return parse(buf)
}

// Parse the entire contents of a stream into a Value.
//
// If `enc` is nil, the stream is treated as UTF-8, unless it starts with a
// byte-order mark.
func DecodeReader(r io.Reader, enc encoding.Encoding) (Value, error) {
	buf, err := io.ReadAll(DecodingReader(r, enc))
	if err != nil {
		return Value{}, fmt.Errorf("failed to read source:\n\t * %w", err) //nolint:exhaustruct
	}
	return parse(buf)
}

// Wrap a reader so that text stored with encoding `enc` is read as UTF-8.
//
// If `enc` is nil, the stream is treated as UTF-8, unless it starts with a
// byte-order mark.
func DecodingReader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil {
		return transform.NewReader(r, sniffingDecoder())
	}
	return transform.NewReader(r, enc.NewDecoder())
}

// Wrap a writer so that UTF-8 text written to it is stored with encoding `enc`.
//
// If `enc` is nil, the writer is returned unchanged. Callers must `Close` the
// result to flush any pending bytes.
func EncodeWriter(w io.Writer, enc encoding.Encoding) io.WriteCloser {
	if enc == nil {
		return nopCloser{w}
	}
	return transform.NewWriter(w, enc.NewEncoder())
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
