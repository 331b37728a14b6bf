package actor

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/scene"
)

// Names of the invokables every proxy starts with.
const (
	InvokableProcessMessage = "Process Message"
	InvokableTickLocal      = "Tick Local"
	InvokableTickRemote     = "Tick Remote"
)

// Type identifies an actor type in a Library.
type Type struct {
	Category string
	Name     string
}

func (t Type) String() string { return t.Category + "." + t.Name }

// Invokable is a named entry point on a proxy that messages are delivered to.
type Invokable func(msg *message.Message) error

// Manager is the part of the game manager a proxy talks back to. It is set
// while the proxy is in the game manager.
type Manager interface {
	RegisterForMessages(t *message.Type, p *Proxy, invokable string) error
	UnregisterForMessages(t *message.Type, p *Proxy, invokable string)
	RegisterForMessagesAboutActor(t *message.Type, about message.UniqueID, p *Proxy, invokable string) error
	UnregisterForMessagesAboutActor(t *message.Type, about message.UniqueID, p *Proxy, invokable string)
	SendMessage(msg *message.Message)
	MessageFactory() *message.Factory
	Logger() *zap.Logger
}

// Proxy is the game manager's view of an actor. It owns its components
// exclusively; everything on it is touched only from the frame goroutine.
type Proxy struct {
	id   message.UniqueID
	name string
	typ  Type

	remote    bool
	published bool
	deleted   bool
	inGM      bool
	mgr       Manager

	node       *scene.Node
	properties map[string]string

	components map[ComponentType]Component
	order      []ComponentType
	tickers    []ComponentType
	tickOn     bool

	invokables   map[string]Invokable
	selfHandlers map[*message.Type][]string
}

func NewProxy(t Type, name string) *Proxy {
	return NewProxyWithID(t, name, message.NewUniqueID())
}

// NewProxyWithID is used when the id is dictated from elsewhere, such as a
// map file or a remote create message.
func NewProxyWithID(t Type, name string, id message.UniqueID) *Proxy {
	p := &Proxy{
		id:           id,
		name:         name,
		typ:          t,
		properties:   make(map[string]string),
		components:   make(map[ComponentType]Component, 4),
		invokables:   make(map[string]Invokable, 4),
		selfHandlers: make(map[*message.Type][]string),
	}
	p.invokables[InvokableProcessMessage] = p.processMessage
	p.invokables[InvokableTickLocal] = func(msg *message.Message) error { return p.tick(msg, false) }
	p.invokables[InvokableTickRemote] = func(msg *message.Message) error { return p.tick(msg, true) }
	return p
}

func (p *Proxy) ID() message.UniqueID { return p.id }
func (p *Proxy) Name() string         { return p.name }
func (p *Proxy) SetName(name string)  { p.name = name }
func (p *Proxy) ActorType() Type      { return p.typ }
func (p *Proxy) IsRemote() bool       { return p.remote }
func (p *Proxy) IsPublished() bool    { return p.published }
func (p *Proxy) IsDeleted() bool      { return p.deleted }
func (p *Proxy) IsInGM() bool         { return p.inGM }
func (p *Proxy) Manager() Manager     { return p.mgr }

func (p *Proxy) Node() *scene.Node     { return p.node }
func (p *Proxy) SetNode(n *scene.Node) { p.node = n }

// SetRemote marks the actor as owned by another machine. It has no effect
// once the proxy is in the game manager.
func (p *Proxy) SetRemote(remote bool) bool {
	if p.inGM {
		return false
	}
	p.remote = remote
	return true
}

func (p *Proxy) SetPublished() { p.published = true }

// MarkDeleted flags the proxy as scheduled for removal. Called by the game
// manager; the proxy keeps working until it leaves the world.
func (p *Proxy) MarkDeleted() { p.deleted = true }

func (p *Proxy) logger() *zap.Logger {
	if p.mgr != nil {
		return p.mgr.Logger()
	}
	return zap.L()
}

// EnterWorld is called by the game manager when the proxy is added to it.
func (p *Proxy) EnterWorld(m Manager) {
	p.mgr = m
	p.inGM = true
	p.deleted = false
	if p.remote {
		_ = p.RegisterForMessagesAboutSelf(message.InfoActorUpdated, InvokableProcessMessage)
	}
	for _, c := range p.Components() {
		c.OnEnteredWorld()
	}
	p.syncTicks()
}

// LeaveWorld is called by the game manager when the proxy is removed from it.
func (p *Proxy) LeaveWorld() {
	for _, c := range p.Components() {
		c.OnRemovedFromWorld()
	}
	if p.tickOn && p.mgr != nil {
		p.mgr.UnregisterForMessages(p.tickType(), p, p.tickInvokable())
	}
	p.tickOn = false
	p.inGM = false
	p.mgr = nil
}

// Properties

func (p *Proxy) SetProperty(name, value string) { p.properties[name] = value }

func (p *Proxy) Property(name string) (string, bool) {
	v, ok := p.properties[name]
	return v, ok
}

// PropertyNames returns the property names in sorted order.
func (p *Proxy) PropertyNames() []string {
	names := make([]string, 0, len(p.properties))
	for k := range p.properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Components

// AddComponent attaches c. A second component of the same type is rejected.
func (p *Proxy) AddComponent(c Component) error {
	t := c.Type()
	if _, ok := p.components[t]; ok {
		p.logger().Error("duplicate actor component",
			zap.String("actor", p.name),
			zap.String("type", string(t)))
		return fmt.Errorf("add %s to %s: %w", t, p.name, ErrDuplicateComponent)
	}
	p.components[t] = c
	p.order = append(p.order, t)
	c.OnAddedToActor(p)
	if p.inGM {
		c.OnEnteredWorld()
	}
	return nil
}

// RemoveComponent detaches the component of type t and reports whether there
// was one.
func (p *Proxy) RemoveComponent(t ComponentType) bool {
	c, ok := p.components[t]
	if !ok {
		return false
	}
	if p.inGM {
		c.OnRemovedFromWorld()
	}
	p.removeTicker(t)
	c.OnRemovedFromActor(p)
	delete(p.components, t)
	p.order = slices.DeleteFunc(p.order, func(x ComponentType) bool { return x == t })
	return true
}

func (p *Proxy) GetComponent(t ComponentType) (Component, bool) {
	c, ok := p.components[t]
	return c, ok
}

func (p *Proxy) HasComponent(t ComponentType) bool {
	_, ok := p.components[t]
	return ok
}

// Components returns the components in the order they were added.
func (p *Proxy) Components() []Component {
	out := make([]Component, 0, len(p.order))
	for _, t := range p.order {
		out = append(out, p.components[t])
	}
	return out
}

// RemoveAllComponents detaches every component, last added first.
func (p *Proxy) RemoveAllComponents() {
	for i := len(p.order) - 1; i >= 0; i-- {
		p.RemoveComponent(p.order[i])
	}
}

// Ticks

func (p *Proxy) tickType() *message.Type {
	if p.remote {
		return message.TickRemote
	}
	return message.TickLocal
}

func (p *Proxy) tickInvokable() string {
	if p.remote {
		return InvokableTickRemote
	}
	return InvokableTickLocal
}

func (p *Proxy) addTicker(t ComponentType) error {
	c, ok := p.components[t]
	if !ok {
		return fmt.Errorf("register %s for ticks: %w", t, ErrNoOwner)
	}
	if _, ok := c.(Ticker); !ok {
		return fmt.Errorf("register %s for ticks: %w", t, ErrNotTicker)
	}
	if !slices.Contains(p.tickers, t) {
		p.tickers = append(p.tickers, t)
	}
	p.syncTicks()
	return nil
}

func (p *Proxy) removeTicker(t ComponentType) {
	n := len(p.tickers)
	p.tickers = slices.DeleteFunc(p.tickers, func(x ComponentType) bool { return x == t })
	if len(p.tickers) != n {
		p.syncTicks()
	}
}

// syncTicks keeps the proxy's tick listener registered exactly while at
// least one component wants ticks.
func (p *Proxy) syncTicks() {
	if p.mgr == nil || p.deleted {
		return
	}
	want := len(p.tickers) > 0
	switch {
	case want && !p.tickOn:
		if err := p.mgr.RegisterForMessages(p.tickType(), p, p.tickInvokable()); err != nil {
			p.logger().Error("tick registration failed", zap.String("actor", p.name), zap.Error(err))
			return
		}
		p.tickOn = true
	case !want && p.tickOn:
		p.mgr.UnregisterForMessages(p.tickType(), p, p.tickInvokable())
		p.tickOn = false
	}
}

// tick calls every registered component. A failing component does not stop
// the others; their errors are joined.
func (p *Proxy) tick(msg *message.Message, remote bool) error {
	var errs []error
	for _, t := range slices.Clone(p.tickers) {
		c, ok := p.components[t]
		if !ok {
			continue
		}
		tk, ok := c.(Ticker)
		if !ok {
			continue
		}
		var err error
		if remote {
			err = Guard(func() error { return tk.OnTickRemote(msg) })
		} else {
			err = Guard(func() error { return tk.OnTickLocal(msg) })
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s on %s: %w", t, p.name, err))
		}
	}
	return errors.Join(errs...)
}

// processMessage is the default "Process Message" invokable: remote actors
// take property updates about themselves.
func (p *Proxy) processMessage(msg *message.Message) error {
	if msg.Type() == message.InfoActorUpdated && p.remote && msg.AboutActorID == p.id {
		return ApplyUpdate(p, msg)
	}
	return nil
}

// Guard runs fn and turns a panic into an error.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
