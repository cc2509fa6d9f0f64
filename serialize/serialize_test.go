//nolint:exhaustruct
package serialize_test

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/pasqal-io/frost/assertions/testutils"
	"github.com/pasqal-io/frost/deserialize"
	"github.com/pasqal-io/frost/registry"
	"github.com/pasqal-io/frost/serialize"
	"github.com/pasqal-io/frost/value"
	"golang.org/x/text/encoding/unicode"
	"gotest.tools/v3/assert"
)

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Shape interface {
	Area() float64
}

type Square struct {
	Side float64 `json:"side"`
}

func (s Square) Area() float64 {
	return s.Side * s.Side
}

type Drawing struct {
	Shapes []Shape
	Origin Point
}

type Level uint8

const (
	Low Level = iota
	High
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	assert.NilError(t, registry.Add[Point](reg, "Point"))
	assert.NilError(t, registry.Add[Square](reg, "Square"))
	assert.NilError(t, registry.Add[Drawing](reg, "Drawing"))
	assert.NilError(t, registry.Enum(reg, map[string]Level{
		"Low":  Low,
		"High": High,
	}))
	return reg
}

func serializeWith(t *testing.T, configure func(*serialize.Options), v any) string {
	t.Helper()
	options := serialize.DefaultOptions()
	options.Registry = testRegistry(t)
	options.UseUTCDateTime = true
	if configure != nil {
		configure(&options)
	}
	result, err := serialize.New(options).Serialize(v)
	assert.NilError(t, err)
	return result
}

func TestSerializePoint(t *testing.T) {
	assert.Equal(t, serializeWith(t, nil, Point{X: 1, Y: 2}), `{"x":1,"y":2}`)
	assert.Equal(t, serializeWith(t, nil, &Point{X: 1, Y: 2}), `{"x":1,"y":2}`)
	assert.Equal(t, serializeWith(t, func(o *serialize.Options) {
		o.UseExtensions = true
	}, Point{X: 1, Y: 2}), `{"$type":"Point","x":1,"y":2}`)
}

func TestSerializeScalars(t *testing.T) {
	assert.Equal(t, serializeWith(t, nil, nil), `null`)
	assert.Equal(t, serializeWith(t, nil, true), `true`)
	assert.Equal(t, serializeWith(t, nil, -42), `-42`)
	assert.Equal(t, serializeWith(t, nil, uint16(42)), `42`)
	assert.Equal(t, serializeWith(t, nil, 1.5), `1.5`)
	assert.Equal(t, serializeWith(t, nil, float32(0.1)), `0.1`)
	assert.Equal(t, serializeWith(t, nil, 1e21), `1e+21`)
	assert.Equal(t, serializeWith(t, nil, "<a href=\"x\">\n"), `"<a href=\"x\">\n"`)
	assert.Equal(t, serializeWith(t, nil, []byte("hello")), `"aGVsbG8="`)
	assert.Equal(t, serializeWith(t, nil, []byte(nil)), `null`)
	assert.Equal(t, serializeWith(t, nil, High), `"High"`)
	assert.Equal(t, serializeWith(t, nil, Level(7)), `7`)

	_, err := serialize.New(serialize.DefaultOptions()).Serialize(math.NaN())
	assert.ErrorContains(t, err, "unsupported float value")
}

func TestSerializeGUID(t *testing.T) {
	guid := uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d0e0f")
	assert.Equal(t, serializeWith(t, nil, guid), `"AAECAwQFBgcICQoLDA0ODw=="`)
	assert.Equal(t, serializeWith(t, func(o *serialize.Options) {
		o.UseFastGUID = false
	}, guid), `"00010203-0405-0607-0809-0a0b0c0d0e0f"`)
}

// Our output can be read by a mainstream JSON library.
func TestSerializeIsStandardJSON(t *testing.T) {
	type Sample struct {
		Name   string            `json:"name"`
		Score  float64           `json:"score"`
		Tags   []string          `json:"tags"`
		Labels map[string]string `json:"labels"`
		ID     uuid.UUID         `json:"id"`
	}
	sample := Sample{
		Name:   "quote \" and \u2028 and \x01",
		Score:  0.000001,
		Tags:   []string{"é", "✓"},
		Labels: map[string]string{"k": "v"},
		ID:     uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	}
	text := serializeWith(t, func(o *serialize.Options) {
		o.UseFastGUID = false
	}, sample)
	testutils.AssertRegexp(t, text, *regexp.MustCompile(`"id":"[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}"`), "hyphenated GUID")
	decoded, err := testutils.Unmarshal[Sample](t, []byte(text))
	assert.NilError(t, err)
	assert.DeepEqual(t, *decoded, sample)
}

func TestSerializeTime(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	at := time.Date(2024, 3, 5, 11, 11, 12, 0, paris)
	assert.Equal(t, serializeWith(t, nil, at), `"2024-03-05 10:11:12"`)
}

func TestSerializeContainers(t *testing.T) {
	type Index struct {
		Names  []string
		Empty  []int
		ByName map[string]int
		ByID   map[int]string
		Fixed  [2]bool
	}
	result := serializeWith(t, nil, Index{
		Names:  []string{"a", "b"},
		ByName: map[string]int{"zeta": 1, "alpha": 2},
		ByID:   map[int]string{10: "ten", 2: "two"},
		Fixed:  [2]bool{true, false},
	})
	assert.Equal(t, result, `{"Names":["a","b"],"Empty":null,"ByName":{"alpha":2,"zeta":1},"ByID":[{"k":2,"v":"two"},{"k":10,"v":"ten"}],"Fixed":[true,false]}`)
}

func TestSerializeMemberOptions(t *testing.T) {
	type Ticket struct {
		ID      int    `json:"id,readonly"`
		Title   string `json:"title"`
		Note    string `json:"note,omitempty"`
		Parent  *Point `json:"parent"`
		Ignored string `json:"-"`
		private int
	}
	ticket := Ticket{ID: 3, Title: "t", Ignored: "x", private: 1}
	assert.Equal(t, serializeWith(t, nil, ticket), `{"title":"t","parent":null}`)
	assert.Equal(t, serializeWith(t, func(o *serialize.Options) {
		o.ShowReadOnly = true
		o.SerializeNullValues = false
	}, ticket), `{"id":3,"title":"t"}`)
}

func TestSerializeInlined(t *testing.T) {
	type Base struct {
		ID int
	}
	type Bag struct {
		Base
		Name  string
		Extra map[string]int `json:",inline"`
	}
	result := serializeWith(t, nil, Bag{Base: Base{ID: 1}, Name: "n", Extra: map[string]int{"b": 2, "a": 1}})
	assert.Equal(t, result, `{"Name":"n","ID":1,"a":1,"b":2}`)
}

func TestSerializeAnonymous(t *testing.T) {
	anonymous := struct {
		x int
		Y string
	}{x: 1, Y: "y"}
	assert.Equal(t, serializeWith(t, func(o *serialize.Options) {
		o.UseExtensions = true
	}, anonymous), `{"x":1,"Y":"y"}`)

	assert.Equal(t, serializeWith(t, func(o *serialize.Options) {
		o.UseExtensions = true
		o.EnableAnonymousTypes = true
	}, Point{X: 1}), `{"x":1,"y":0}`)
}

func TestSerializeGlobalTypes(t *testing.T) {
	drawing := Drawing{
		Shapes: []Shape{Square{Side: 2}, Square{Side: 3}},
		Origin: Point{X: 1, Y: 1},
	}
	configure := func(o *serialize.Options) {
		o.UseGlobalTypes = true
	}
	result := serializeWith(t, configure, drawing)
	assert.Equal(t, result, `{"$type":"1","Shapes":[{"$type":"2","side":2},{"$type":"2","side":3}],"Origin":{"$type":"3","x":1,"y":1},"$types":{"1":"Drawing","2":"Square","3":"Point"}}`)

	// Without a root object, there is no room for `$types`.
	list := serializeWith(t, configure, []Shape{Square{Side: 2}})
	assert.Equal(t, list, `[{"$type":"Square","side":2}]`)

	// The binder reads it back.
	options := deserialize.JSONOptions("")
	options.Registry = testRegistry(t)
	deserializer, err := deserialize.MakeDeserializer[Drawing](options)
	assert.NilError(t, err)
	back, err := deserializer.DeserializeString(result)
	assert.NilError(t, err)
	assert.DeepEqual(t, *back, drawing)
}

type Celsius float64

func (c Celsius) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%gC"`, float64(c))), nil
}

func TestSerializeCustom(t *testing.T) {
	type Forecast struct {
		High Celsius
	}
	assert.Equal(t, serializeWith(t, nil, Forecast{High: 21.5}), `{"High":"21.5C"}`)
}

func TestSerializeRaw(t *testing.T) {
	raw, err := value.Decode(`{"b": [1, 2.50]}`)
	assert.NilError(t, err)
	type Envelope struct {
		Payload value.Value
		Empty   value.Value
	}
	assert.Equal(t, serializeWith(t, nil, Envelope{Payload: raw}), `{"Payload":{"b":[1,2.50]},"Empty":null}`)
}

type Node struct {
	Next *Node
}

func TestSerializeCycle(t *testing.T) {
	node := &Node{}
	node.Next = node
	_, err := serialize.New(serialize.DefaultOptions()).Serialize(node)
	assert.ErrorContains(t, err, "may be cyclic")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestSerializeTo(t *testing.T) {
	type Page struct {
		Lines []string
	}
	page := Page{}
	for i := 0; i < 2000; i++ {
		page.Lines = append(page.Lines, fmt.Sprintf("line %d, with ünicode", i))
	}
	expected := serializeWith(t, nil, page)

	var buf bytes.Buffer
	utf16 := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	serializer := serialize.New(serialize.DefaultOptions())
	assert.NilError(t, serializer.SerializeTo(&buf, utf16, page))
	decoded, err := utf16.NewDecoder().Bytes(buf.Bytes())
	assert.NilError(t, err)
	assert.Equal(t, string(decoded), expected)

	buf.Reset()
	assert.NilError(t, serializer.SerializeTo(&buf, nil, page))
	assert.Equal(t, buf.String(), expected)

	err = serializer.SerializeTo(failingWriter{}, nil, page)
	assert.ErrorContains(t, err, "disk full")
}

func TestRoundTrip(t *testing.T) {
	type Inner struct {
		Tags []string
		When time.Time
	}
	type Outer struct {
		ID      uuid.UUID
		Level   Level
		Inner   *Inner
		Scores  map[string]float64
		ByLevel map[Level]string
		Blob    []byte
		Any     any
	}
	original := Outer{
		ID:      uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Level:   High,
		Inner:   &Inner{Tags: []string{"a", "b"}, When: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)},
		Scores:  map[string]float64{"math": 19.5},
		ByLevel: map[Level]string{Low: "low", High: "high"},
		Blob:    []byte{0, 1, 2, 255},
		Any:     map[string]any{"nested": []any{int64(1), "two"}},
	}
	text := serializeWith(t, nil, original)

	options := deserialize.JSONOptions("")
	options.Registry = testRegistry(t)
	options.UseUTCDateTime = true
	deserializer, err := deserialize.MakeDeserializer[Outer](options)
	assert.NilError(t, err)
	back, err := deserializer.DeserializeString(text)
	assert.NilError(t, err)
	if diff := cmp.Diff(original, *back); diff != "" {
		t.Errorf("round trip through %s, -want +got:\n%s", text, diff)
	}
	assert.Assert(t, strings.Contains(text, `"Level":"High"`))
}
