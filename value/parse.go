package value

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/goccy/go-json"
)

// The maximal nesting of arrays and objects accepted by the parser.
const MaxDepth = 10_000

// The grammar of JSON numbers. go-json does not check the text it hands out
// as a `json.Number`.
var numberLiteral = regexp.MustCompile(`^-?(?:0|[1-9][0-9]*)(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?$`)

// Objects with more members than this get a key index while parsing.
const indexThreshold = 16

// An error raised when the source is not well-formed JSON.
type ParseError struct {
	// Byte offset in the (decoded) source.
	Offset int

	// Human-readable cause.
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid json at offset %d: %s", e.Offset, e.Message)
}

var _ error = &ParseError{} //nolint:exhaustruct

// Parse JSON text into a Value.
func Decode(source string) (Value, error) {
	return parse([]byte(source))
}

// Builds a tree from the token stream of a go-json decoder.
//
// `Decoder.Token` does not check separators, so the source is first checked
// by a full decode. The token pass then keeps the order of members and the
// literal text of numbers.
type builder struct {
	dec   *json.Decoder
	depth int
}

func newDecoder(buf []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	return dec
}

func parse(buf []byte) (Value, error) {
	if err := check(buf); err != nil {
		return Value{}, err //nolint:exhaustruct
	}
	b := builder{dec: newDecoder(buf), depth: 0}
	tok, err := b.next()
	if err != nil {
		return Value{}, err //nolint:exhaustruct
	}
	return b.build(tok)
}

// Reject anything that is not exactly one well-formed value.
func check(buf []byte) error {
	dec := newDecoder(buf)
	b := builder{dec: dec, depth: 0}
	var discard any
	if err := dec.Decode(&discard); err != nil {
		return b.wrap(err)
	}
	offset := min(int(dec.InputOffset()), len(buf))
	if len(bytes.TrimLeft(buf[offset:], " \t\r\n")) != 0 {
		return &ParseError{Offset: offset, Message: "unexpected trailing data"}
	}
	return nil
}

func (b *builder) fail(format string, args ...any) *ParseError {
	return &ParseError{
		Offset:  int(b.dec.InputOffset()),
		Message: fmt.Sprintf(format, args...),
	}
}

// Convert an error of the decoder into a `*ParseError`.
func (b *builder) wrap(err error) error {
	var syntax *json.SyntaxError
	switch {
	case errors.As(err, &syntax):
		return &ParseError{
			Offset:  int(syntax.Offset),
			Message: syntax.Error(),
		}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return b.fail("unexpected end of input")
	default:
		return b.fail("%s", err.Error())
	}
}

func (b *builder) next() (json.Token, error) {
	tok, err := b.dec.Token()
	if err != nil {
		return nil, b.wrap(err)
	}
	return tok, nil
}

func (b *builder) build(tok json.Token) (Value, error) {
	switch typed := tok.(type) {
	case json.Delim:
		switch typed {
		case '{':
			return b.buildObject()
		case '[':
			return b.buildArray()
		default:
			return Value{}, b.fail("unexpected %q", rune(typed)) //nolint:exhaustruct
		}
	case string:
		return MakeString(typed), nil
	case json.Number:
		if !numberLiteral.MatchString(string(typed)) {
			return Value{}, b.fail("invalid number %q", string(typed)) //nolint:exhaustruct
		}
		return MakeNumber(string(typed)), nil
	case float64:
		return MakeNumber(strconv.FormatFloat(typed, 'g', -1, 64)), nil
	case bool:
		return MakeBool(typed), nil
	case nil:
		return MakeNull(), nil
	default:
		return Value{}, b.fail("unexpected token %v", tok) //nolint:exhaustruct
	}
}

func (b *builder) enter() error {
	b.depth++
	if b.depth > MaxDepth {
		return b.fail("maximum nesting depth %d exceeded", MaxDepth)
	}
	return nil
}

func (b *builder) buildObject() (Value, error) {
	if err := b.enter(); err != nil {
		return Value{}, err //nolint:exhaustruct
	}
	defer func() { b.depth-- }()

	members := make([]Member, 0)
	var index map[string]int
	for {
		tok, err := b.next()
		if err != nil {
			return Value{}, err //nolint:exhaustruct
		}
		if tok == json.Delim('}') {
			return Value{kind: Object, members: members}, nil //nolint:exhaustruct
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, b.fail("expected an object key, got %v", tok) //nolint:exhaustruct
		}
		tok, err = b.next()
		if err != nil {
			return Value{}, err //nolint:exhaustruct
		}
		val, err := b.build(tok)
		if err != nil {
			return Value{}, err //nolint:exhaustruct
		}
		if index == nil && len(members) >= indexThreshold {
			index = make(map[string]int, len(members)*2)
			for i, m := range members {
				index[m.Key] = i
			}
		}
		members = setMember(members, index, key, val)
	}
}

func (b *builder) buildArray() (Value, error) {
	if err := b.enter(); err != nil {
		return Value{}, err //nolint:exhaustruct
	}
	defer func() { b.depth-- }()

	items := make([]Value, 0)
	for {
		tok, err := b.next()
		if err != nil {
			return Value{}, err //nolint:exhaustruct
		}
		if tok == json.Delim(']') {
			return MakeArray(items), nil
		}
		item, err := b.build(tok)
		if err != nil {
			return Value{}, err //nolint:exhaustruct
		}
		items = append(items, item)
	}
}
