package gm

import (
	"fmt"

	"github.com/dtsim/server/internal/message"
)

// Priority orders GM components for message delivery. Lower order ids are
// delivered first; components of equal priority keep registration order.
type Priority struct {
	name  string
	order int
}

var (
	Highest = Priority{name: "HIGHEST", order: 1}
	Higher  = Priority{name: "HIGHER", order: 2}
	Normal  = Priority{name: "NORMAL", order: 3}
	Lower   = Priority{name: "LOWER", order: 4}
	Lowest  = Priority{name: "LOWEST", order: 5}
)

func (p Priority) Name() string   { return p.name }
func (p Priority) Order() int     { return p.order }
func (p Priority) String() string { return p.name }

// ParsePriority maps a priority name such as "NORMAL" to its value.
func ParsePriority(name string) (Priority, error) {
	for _, p := range []Priority{Highest, Higher, Normal, Lower, Lowest} {
		if p.name == name {
			return p, nil
		}
	}
	return Priority{}, fmt.Errorf("unknown priority %q", name)
}

// Component is a process-wide subsystem plugged into the game manager.
type Component interface {
	Name() string
	// ProcessMessage receives every message delivered locally.
	ProcessMessage(msg *message.Message) error
	// DispatchNetworkMessage receives messages bound for other machines.
	DispatchNetworkMessage(msg *message.Message) error
	OnAddedToGM(gm *GameManager)
	OnRemovedFromGM()
}

// BaseComponent provides no-op message hooks and keeps the game manager
// reference. Embed it and override what is needed.
type BaseComponent struct {
	name string
	gm   *GameManager
}

func NewBaseComponent(name string) BaseComponent {
	return BaseComponent{name: name}
}

func (b *BaseComponent) Name() string                { return b.name }
func (b *BaseComponent) GameManager() *GameManager   { return b.gm }
func (b *BaseComponent) OnAddedToGM(gm *GameManager) { b.gm = gm }
func (b *BaseComponent) OnRemovedFromGM()            { b.gm = nil }

func (b *BaseComponent) ProcessMessage(*message.Message) error         { return nil }
func (b *BaseComponent) DispatchNetworkMessage(*message.Message) error { return nil }

type componentEntry struct {
	c        Component
	priority Priority
	removed  bool
}
