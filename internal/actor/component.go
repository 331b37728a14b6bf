package actor

import (
	"fmt"

	"github.com/dtsim/server/internal/message"
)

// ComponentType names a kind of actor component. A proxy holds at most one
// component per type.
type ComponentType string

// Component adds behaviour to a single actor. The proxy drives the hooks in
// this order: OnAddedToActor, OnEnteredWorld (once the proxy is in the game
// manager), OnRemovedFromWorld, OnRemovedFromActor.
type Component interface {
	Type() ComponentType
	OnAddedToActor(p *Proxy)
	OnRemovedFromActor(p *Proxy)
	OnEnteredWorld()
	OnRemovedFromWorld()
}

// Ticker is implemented by components that want tick messages. Only the
// variant matching the owner's remote flag is called.
type Ticker interface {
	OnTickLocal(msg *message.Message) error
	OnTickRemote(msg *message.Message) error
}

// BaseComponent carries the owner back reference and tick registration.
// Types embedding it and overriding OnAddedToActor or OnRemovedFromActor must
// call through to the embedded method.
type BaseComponent struct {
	typ     ComponentType
	owner   *Proxy
	ticking bool
}

func NewBaseComponent(t ComponentType) BaseComponent {
	return BaseComponent{typ: t}
}

func (b *BaseComponent) Type() ComponentType { return b.typ }

// Owner is nil while the component is not attached.
func (b *BaseComponent) Owner() *Proxy { return b.owner }

func (b *BaseComponent) IsRegisteredForTicks() bool { return b.ticking }

func (b *BaseComponent) OnAddedToActor(p *Proxy) { b.owner = p }

func (b *BaseComponent) OnRemovedFromActor(p *Proxy) {
	if b.ticking && b.owner != nil {
		b.owner.removeTicker(b.typ)
	}
	b.ticking = false
	b.owner = nil
}

func (b *BaseComponent) OnEnteredWorld()     {}
func (b *BaseComponent) OnRemovedFromWorld() {}

// RegisterForTicks asks the owner to call this component on every tick.
// Calling it again while registered does nothing.
func (b *BaseComponent) RegisterForTicks() error {
	if b.owner == nil {
		return fmt.Errorf("register %s for ticks: %w", b.typ, ErrNoOwner)
	}
	if b.ticking {
		return nil
	}
	if err := b.owner.addTicker(b.typ); err != nil {
		return err
	}
	b.ticking = true
	return nil
}

func (b *BaseComponent) UnregisterForTicks() error {
	if b.owner == nil {
		return fmt.Errorf("unregister %s for ticks: %w", b.typ, ErrNoOwner)
	}
	if !b.ticking {
		return nil
	}
	b.owner.removeTicker(b.typ)
	b.ticking = false
	return nil
}

// ComponentAs returns the component of type t as T. The error is only set
// when a component exists but has a different Go type.
func ComponentAs[T Component](p *Proxy, t ComponentType) (T, bool, error) {
	var zero T
	c, ok := p.GetComponent(t)
	if !ok {
		return zero, false, nil
	}
	v, ok := c.(T)
	if !ok {
		return zero, false, fmt.Errorf("component %s is %T: %w", t, c, ErrComponentTypeMismatch)
	}
	return v, true, nil
}
