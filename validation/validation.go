// Mechanisms to deal with initialization and validation of values.
//
// These interfaces are primarily designed to be implemented by the types
// that documents are bound to.
package validation

import "fmt"

// A type that supports initialization.
//
// The binder calls `Initialize()` on every value it constructs, at every
// depth of the tree, **before** writing any member.
//
// Important: We expect `CanInitialize` to be implemented on **pointers**,
// rather than on structs.
//
// Otherwise, all its operations are performed on a copy of the struct and
// the result is lost immediately.
type CanInitialize interface {
	// Setup the contents of the struct.
	Initialize() error
}

// A type that supports validation.
//
// The binder calls `Validate()` at every depth of the tree, **after**
// writing all the members it found in the document.
//
// Important: We expect `CanValidate` to be implemented on **pointers**,
// rather than on structs.
//
// This lets `Validate()` perform any necessary changes to the data
// structure. In particular, if necessary, it may be used to populate
// private fields from the contents of public fields.
type CanValidate interface {
	// Confirm that the data is valid.
	//
	// Return an error if it is invalid.
	//
	// If necessary, this method may alter the contents of the struct.
	Validate() error
}

// An error returned by `Validate()`, annotated with the place where it happened.
type Error struct {
	// A human-readable path, e.g. `Order.lines[2]`.
	Path string

	Wrapped error
}

func (e Error) Error() string {
	return fmt.Sprintf("at %s, validation failed:\n\t * %s", e.Path, e.Wrapped.Error())
}

func (e Error) Unwrap() error {
	return e.Wrapped
}

// Annotate a validation error with its path.
func WrapError(path string, err error) error {
	return Error{
		Path:    path,
		Wrapped: err,
	}
}

var _ error = Error{} //nolint:exhaustruct
