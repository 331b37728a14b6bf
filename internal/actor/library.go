package actor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dtsim/server/internal/message"
)

// Builder finishes a freshly created proxy, typically by adding components.
type Builder func(p *Proxy) error

// Library maps actor types to builders.
type Library struct {
	mu    sync.RWMutex
	types map[Type]Builder
}

func NewLibrary() *Library {
	return &Library{types: make(map[Type]Builder, 16)}
}

func (l *Library) Register(t Type, b Builder) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.types[t]; ok {
		return fmt.Errorf("actor type %s: %w", t, ErrDuplicateActorType)
	}
	l.types[t] = b
	return nil
}

func (l *Library) Has(t Type) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.types[t]
	return ok
}

// Types returns every registered type ordered by category, then name.
func (l *Library) Types() []Type {
	l.mu.RLock()
	out := make([]Type, 0, len(l.types))
	for t := range l.types {
		out = append(out, t)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Create builds a proxy of type t with a fresh id.
func (l *Library) Create(t Type, name string) (*Proxy, error) {
	return l.build(NewProxy(t, name))
}

// CreateWithID builds a proxy of type t that keeps the given id. A null id
// gets a fresh one.
func (l *Library) CreateWithID(t Type, name string, id message.UniqueID) (*Proxy, error) {
	if id.IsNull() {
		id = message.NewUniqueID()
	}
	return l.build(NewProxyWithID(t, name, id))
}

func (l *Library) build(p *Proxy) (*Proxy, error) {
	l.mu.RLock()
	b, ok := l.types[p.typ]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("create %s: %w", p.typ, ErrUnknownActorType)
	}
	if b != nil {
		if err := b(p); err != nil {
			return nil, fmt.Errorf("build %s %q: %w", p.typ, p.name, err)
		}
	}
	return p, nil
}
