package registry

import "reflect"

// A per-document table of type aliases, read from `$types`.
//
// An `Aliases` belongs to a single decode call. Never store it anywhere
// that outlives that call.
type Aliases struct {
	byAlias map[string]string
}

func NewAliases() *Aliases {
	return &Aliases{
		byAlias: make(map[string]string),
	}
}

func (a *Aliases) Add(alias string, typeName string) {
	a.byAlias[alias] = typeName
}

func (a *Aliases) Lookup(alias string) (string, bool) {
	if a == nil {
		return "", false
	}
	name, ok := a.byAlias[alias]
	return name, ok
}

func (a *Aliases) Len() int {
	if a == nil {
		return 0
	}
	return len(a.byAlias)
}

// Resolve a `$type` tag: first as an alias, then as a type name.
func (r *Registry) ResolveTag(tag string, aliases *Aliases) (reflect.Type, bool) {
	if name, ok := aliases.Lookup(tag); ok {
		tag = name
	}
	return r.Resolve(tag)
}
