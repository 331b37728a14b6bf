package message

import (
	"fmt"
	"sort"
	"sync"
)

// Type describes the kind of a message. Instances are created only through
// TypeRegistry.Register and are compared by pointer.
type Type struct {
	name        string
	category    string
	description string
	id          uint16
}

func (t *Type) Name() string        { return t.name }
func (t *Type) Category() string    { return t.category }
func (t *Type) Description() string { return t.description }
func (t *Type) ID() uint16          { return t.id }
func (t *Type) String() string      { return t.name }

type typeKey struct {
	name     string
	category string
}

// TypeRegistry holds every known message type. Registration normally happens
// once at startup; lookups are safe from any goroutine.
type TypeRegistry struct {
	mu     sync.RWMutex
	byKey  map[typeKey]*Type
	byName map[string][]*Type
	byID   map[uint16]*Type
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byKey:  make(map[typeKey]*Type, 64),
		byName: make(map[string][]*Type, 64),
		byID:   make(map[uint16]*Type, 64),
	}
}

// Register creates the single instance for (name, category). Registering the
// same name and category twice, or reusing an id, fails with ErrDuplicateType.
func (r *TypeRegistry) Register(name, category, description string, id uint16) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("register type with empty name: %w", ErrInvalidType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := typeKey{name: name, category: category}
	if _, ok := r.byKey[key]; ok {
		return nil, fmt.Errorf("register %q/%q: %w", category, name, ErrDuplicateType)
	}
	if other, ok := r.byID[id]; ok {
		return nil, fmt.Errorf("register %q: id %d used by %q: %w", name, id, other.name, ErrDuplicateType)
	}

	t := &Type{name: name, category: category, description: description, id: id}
	r.byKey[key] = t
	r.byName[name] = append(r.byName[name], t)
	r.byID[id] = t
	return t, nil
}

// MustRegister is Register for package-level type declarations.
func (r *TypeRegistry) MustRegister(name, category, description string, id uint16) *Type {
	t, err := r.Register(name, category, description, id)
	if err != nil {
		panic(err)
	}
	return t
}

// Find returns the type registered under name and category, or nil.
func (r *TypeRegistry) Find(name, category string) *Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byKey[typeKey{name: name, category: category}]
}

// FindByName returns the type with the given name when exactly one category
// uses it, otherwise nil.
func (r *TypeRegistry) FindByName(name string) *Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ts := r.byName[name]; len(ts) == 1 {
		return ts[0]
	}
	return nil
}

func (r *TypeRegistry) FindByID(id uint16) *Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// All returns every registered type ordered by id.
func (r *TypeRegistry) All() []*Type {
	r.mu.RLock()
	out := make([]*Type, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *TypeRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
