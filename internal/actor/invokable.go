package actor

import (
	"fmt"
	"slices"
	"sort"

	"github.com/dtsim/server/internal/message"
)

// AddInvokable registers fn under name. Names are unique per proxy.
func (p *Proxy) AddInvokable(name string, fn Invokable) error {
	if _, ok := p.invokables[name]; ok {
		return fmt.Errorf("invokable %q on %s: %w", name, p.name, ErrDuplicateInvokable)
	}
	p.invokables[name] = fn
	return nil
}

// RemoveInvokable drops the invokable and every about-self handler using it.
func (p *Proxy) RemoveInvokable(name string) {
	delete(p.invokables, name)
	for t, names := range p.selfHandlers {
		p.selfHandlers[t] = slices.DeleteFunc(names, func(n string) bool { return n == name })
	}
}

func (p *Proxy) GetInvokable(name string) (Invokable, bool) {
	fn, ok := p.invokables[name]
	return fn, ok
}

// InvokableNames returns every invokable name, sorted.
func (p *Proxy) InvokableNames() []string {
	names := make([]string, 0, len(p.invokables))
	for n := range p.invokables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke calls the named invokable with msg.
func (p *Proxy) Invoke(name string, msg *message.Message) error {
	fn, ok := p.invokables[name]
	if !ok {
		return fmt.Errorf("invoke %q on %s: %w", name, p.name, ErrUnknownInvokable)
	}
	return fn(msg)
}

// RegisterForMessages subscribes the named invokable to every message of
// type t. The proxy must be in the game manager.
func (p *Proxy) RegisterForMessages(t *message.Type, invokable string) error {
	if _, ok := p.invokables[invokable]; !ok {
		return fmt.Errorf("register %q for %s: %w", invokable, t, ErrUnknownInvokable)
	}
	if p.mgr == nil {
		return fmt.Errorf("register %q for %s: %w", invokable, t, ErrNotInGM)
	}
	return p.mgr.RegisterForMessages(t, p, invokable)
}

func (p *Proxy) UnregisterForMessages(t *message.Type, invokable string) {
	if p.mgr != nil {
		p.mgr.UnregisterForMessages(t, p, invokable)
	}
}

// RegisterForMessagesAboutOtherActor subscribes the named invokable to
// messages of type t about the actor with the given id.
func (p *Proxy) RegisterForMessagesAboutOtherActor(t *message.Type, about message.UniqueID, invokable string) error {
	if _, ok := p.invokables[invokable]; !ok {
		return fmt.Errorf("register %q for %s about %s: %w", invokable, t, about, ErrUnknownInvokable)
	}
	if p.mgr == nil {
		return fmt.Errorf("register %q for %s about %s: %w", invokable, t, about, ErrNotInGM)
	}
	return p.mgr.RegisterForMessagesAboutActor(t, about, p, invokable)
}

func (p *Proxy) UnregisterForMessagesAboutOtherActor(t *message.Type, about message.UniqueID, invokable string) {
	if p.mgr != nil {
		p.mgr.UnregisterForMessagesAboutActor(t, about, p, invokable)
	}
}

// RegisterForMessagesAboutSelf makes the named invokable handle messages of
// type t about this proxy. The handler is kept on the proxy itself and works
// before the proxy is added to the game manager.
func (p *Proxy) RegisterForMessagesAboutSelf(t *message.Type, invokable string) error {
	if _, ok := p.invokables[invokable]; !ok {
		return fmt.Errorf("register %q for %s about self: %w", invokable, t, ErrUnknownInvokable)
	}
	if !slices.Contains(p.selfHandlers[t], invokable) {
		p.selfHandlers[t] = append(p.selfHandlers[t], invokable)
	}
	return nil
}

func (p *Proxy) UnregisterForMessagesAboutSelf(t *message.Type, invokable string) {
	p.selfHandlers[t] = slices.DeleteFunc(p.selfHandlers[t], func(n string) bool { return n == invokable })
	if len(p.selfHandlers[t]) == 0 {
		delete(p.selfHandlers, t)
	}
}

// SelfHandlers returns the invokable names handling messages of type t about
// this proxy, in registration order.
func (p *Proxy) SelfHandlers(t *message.Type) []string {
	return slices.Clone(p.selfHandlers[t])
}
