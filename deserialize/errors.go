package deserialize

import (
	"fmt"
	"reflect"

	"github.com/pasqal-io/frost/value"
)

// A `$type` or `$map` names a type we do not know.
type UnresolvableTypeError struct {
	// Human-readable path in the document.
	Path string

	// The name as found in the document.
	Name string
}

func (e UnresolvableTypeError) Error() string {
	return fmt.Sprintf("at %s, cannot resolve type %q, it may need to be registered", e.Path, e.Name)
}

// We could not obtain an instance of a type.
type ConstructionError struct {
	Path string
	Type reflect.Type

	// Why construction failed.
	Reason string

	// The error returned by a constructor, if any.
	Wrapped error
}

func (e ConstructionError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("at %s, cannot construct a %s, %s:\n\t * %s", e.Path, typeName(e.Type), e.Reason, e.Wrapped.Error())
	}
	return fmt.Sprintf("at %s, cannot construct a %s, %s", e.Path, typeName(e.Type), e.Reason)
}

func (e ConstructionError) Unwrap() error {
	return e.Wrapped
}

// A value of the document cannot be converted to the type expected at its place.
type ShapeMismatchError struct {
	Path string

	// What we expected, e.g. `int` or `an object of type Point`.
	Expected string

	// What we found.
	Got value.Kind

	Wrapped error
}

func (e ShapeMismatchError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("invalid value at %s, expected %s, got %s:\n\t * %s", e.Path, e.Expected, e.Got, e.Wrapped.Error())
	}
	return fmt.Sprintf("invalid value at %s, expected %s, got %s", e.Path, e.Expected, e.Got)
}

func (e ShapeMismatchError) Unwrap() error {
	return e.Wrapped
}

// An error that arises because of a bug in a custom hook (`Initialize`).
type CustomDeserializerError struct {
	// The operation that failed, e.g. "initialize".
	Operation string

	// The kind of value we were applying it to, e.g. "struct".
	Structure string

	// The underlying error.
	Wrapped error
}

// Return the user-facing message.
func (e CustomDeserializerError) Error() string {
	return e.Wrapped.Error()
}

// Unwrap the error.
func (e CustomDeserializerError) Unwrap() error {
	return e.Wrapped
}

var (
	_ error = UnresolvableTypeError{}   //nolint:exhaustruct
	_ error = ConstructionError{}       //nolint:exhaustruct
	_ error = ShapeMismatchError{}      //nolint:exhaustruct
	_ error = CustomDeserializerError{} //nolint:exhaustruct
)

func mismatch(path string, expected string, got value.Value, wrapped error) error {
	return ShapeMismatchError{
		Path:     path,
		Expected: expected,
		Got:      got.Kind(),
		Wrapped:  wrapped,
	}
}
