package initialized

// A witness that a struct went through its constructor.
//
// Go lets anyone write `new(T)` or `T{}` and obtain a value that has type `T`
// but none of the guarantees that `NewT()` establishes, e.g. non-nil maps or
// a compiled descriptor. Add a field `witness IsInitialized` to `T`, set it
// with `Make()` in the constructor, and call `witness.Assert()` in methods
// that depend on those guarantees.
//
// The binder never writes to `IsInitialized`: its only field is private and
// its type is not anonymous.
type IsInitialized struct {
	isInitialized bool
}

func Make() IsInitialized {
	return IsInitialized{
		isInitialized: true,
	}
}

// Whether the container was built by its constructor.
func (witness IsInitialized) IsInitialized() bool {
	return witness.isInitialized
}

// Panic unless the container was built by its constructor.
func (witness IsInitialized) Assert() {
	if !witness.isInitialized {
		panic("Struct was not initialized")
	}
}
