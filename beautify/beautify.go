// Pretty-print JSON text.
//
// The printer makes a single forward pass over its input and never parses
// values, so it works on documents of any size with bounded memory. It only
// tracks whether it is inside a string. Malformed input is reformatted
// as well as possible, never rejected.
package beautify

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pasqal-io/frost/value"
	"golang.org/x/text/encoding"
)

// Three spaces.
const DefaultIndent = "   "

// Reformat a document.
func String(source string, indent string) string {
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	p := newPrinter(out, indent)
	for i := 0; i < len(source); i++ {
		p.feed(source[i])
	}
	p.finish()
	_ = out.Flush() // Writing to a `bytes.Buffer` cannot fail.
	return buf.String()
}

// Reformat a stream.
//
// `inEnc` and `outEnc` may be nil, for UTF-8. If `inEnc` is nil, a byte-order
// mark switches the input to UTF-16.
func Stream(in io.Reader, inEnc encoding.Encoding, out io.Writer, outEnc encoding.Encoding, indent string) error {
	reader := bufio.NewReader(value.DecodingReader(in, inEnc))
	encoded := value.EncodeWriter(out, outEnc)
	writer := bufio.NewWriter(encoded)
	p := newPrinter(writer, indent)
	for {
		c, err := reader.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read source:\n\t * %w", err)
		}
		p.feed(c)
	}
	p.finish()
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write document:\n\t * %w", err)
	}
	if err := encoded.Close(); err != nil {
		return fmt.Errorf("failed to write document:\n\t * %w", err)
	}
	return nil
}

type printer struct {
	out    *bufio.Writer
	indent string
	depth  int

	inString bool
	escaped  bool

	// An opening bracket we have not written yet, so that empty
	// containers print as `{}` or `[]`.
	pending byte
}

func newPrinter(out *bufio.Writer, indent string) *printer {
	return &printer{
		out:      out,
		indent:   indent,
		depth:    0,
		inString: false,
		escaped:  false,
		pending:  0,
	}
}

// Errors are sticky in `bufio.Writer` and reported by `Flush`.
func (p *printer) write(c byte) {
	_ = p.out.WriteByte(c)
}

func (p *printer) newline() {
	p.write('\n')
	_, _ = p.out.WriteString(strings.Repeat(p.indent, p.depth))
}

func closing(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

func (p *printer) feed(c byte) {
	if p.inString {
		p.write(c)
		switch {
		case p.escaped:
			p.escaped = false
		case c == '\\':
			p.escaped = true
		case c == '"':
			p.inString = false
		}
		return
	}
	switch c {
	case ' ', '\t', '\n', '\r':
		return
	}
	if p.pending != 0 {
		open := p.pending
		p.pending = 0
		p.write(open)
		if c == closing(open) {
			p.write(c)
			return
		}
		p.depth++
		p.newline()
	}
	switch c {
	case '{', '[':
		p.pending = c
	case '}', ']':
		if p.depth > 0 {
			p.depth--
		}
		p.newline()
		p.write(c)
	case ',':
		p.write(c)
		p.newline()
	case ':':
		p.write(c)
		p.write(' ')
	case '"':
		p.write(c)
		p.inString = true
	default:
		p.write(c)
	}
}

func (p *printer) finish() {
	if p.pending != 0 {
		p.write(p.pending)
		p.pending = 0
	}
}
