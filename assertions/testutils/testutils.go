package testutils

import (
	"fmt"
	"reflect"
	"regexp"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

// Fail if two values are different.
//
// Does not stop the test.
func AssertEqual[T comparable](t *testing.T, actual, expected T, explanation string) {
	t.Helper()
	if expected != actual {
		t.Errorf("got: %+v; want: %+v (%s)", actual, expected, explanation)
		if reflect.ValueOf(expected).Kind() == reflect.Pointer {
			t.Error("Warning: you're comparing two pointers -- pointers are only equal if they point to the same physical object")
		}
	}
}

// Fail if two values differ structurally, displaying the diff.
//
// Does not stop the test.
func AssertNoDiff[T any](t *testing.T, actual, expected T, explanation string, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		t.Errorf("unexpected result (%s), -want +got:\n%s", explanation, diff)
	}
}

func AssertRegexp(t *testing.T, actual string, pattern regexp.Regexp, explanation string) {
	t.Helper()
	if pattern.FindStringIndex(actual) != nil {
		return
	}
	t.Errorf("got: %+v; expected: %+v (%s)", actual, pattern, explanation)
}

// Decode a payload with a mainstream JSON library, as a point of comparison.
func Unmarshal[T any](t *testing.T, payload []byte) (*T, error) {
	t.Helper()

	// Case 1: Can Payload be unmarshalled to T?
	result := new(T)
	errT := json.Unmarshal(payload, &result)
	if errT == nil {
		return result, nil
	}

	// Case 2: Can Payload can be unmarshalled to any kind of JSON?
	debug := make(map[string]interface{})
	errJSON := json.Unmarshal(payload, &debug)
	if errJSON == nil {
		return nil, fmt.Errorf("payload is valid JSON but not in expected format, got: %+v\n\t%w", debug, errT)
	}

	return nil, fmt.Errorf("payload is invalid JSON, got %s\n\t%w", string(payload), errT)
}
