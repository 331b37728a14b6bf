package gm

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/core/arena"
	"github.com/dtsim/server/internal/core/event"
	"github.com/dtsim/server/internal/core/system"
	"github.com/dtsim/server/internal/mapchange"
	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/scene"
)

// Options carries the process-wide collaborators of a GameManager. Nil
// fields get working defaults.
type Options struct {
	Logger  *zap.Logger
	Clock   *system.Clock
	Scene   scene.Scene
	Machine *message.MachineInfo
	Types   *message.TypeRegistry
	Loader  mapchange.Loader
	// StatsInterval enables periodic statistics logging when positive.
	StatsInterval time.Duration
}

// GameManager owns the actors and GM components of one simulation and drives
// the per-frame message loop. All methods must be called from the frame
// goroutine.
type GameManager struct {
	log     *zap.Logger
	clock   *system.Clock
	scene   scene.Scene
	machine *message.MachineInfo
	factory *message.Factory
	loader  mapchange.Loader

	components []*componentEntry
	compDirty  bool
	depth      int

	actors  *arena.Arena
	proxies *arena.Store[*actor.Proxy]
	byID    map[message.UniqueID]arena.Handle
	order   []arena.Handle

	global map[*message.Type][]*listener
	about  map[*message.Type]map[message.UniqueID][]*listener
	lDirty bool

	queue    *event.Queue[*message.Message]
	netQueue *event.Queue[*message.Message]

	mapChange  *mapchange.StateData
	loadedMaps []string

	timers []*timer
	stats  statistics

	shutdown bool
}

func New(opts Options) *GameManager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = system.NewClock()
	}
	if opts.Machine == nil {
		opts.Machine = message.NewMachineInfo("local")
	}
	g := &GameManager{
		log:      opts.Logger,
		clock:    opts.Clock,
		scene:    opts.Scene,
		machine:  opts.Machine,
		factory:  message.NewFactory(opts.Types, opts.Machine),
		loader:   opts.Loader,
		actors:   arena.New(),
		proxies:  arena.NewStore[*actor.Proxy](),
		byID:     make(map[message.UniqueID]arena.Handle, 256),
		order:    make([]arena.Handle, 0, 256),
		global:   make(map[*message.Type][]*listener),
		about:    make(map[*message.Type]map[message.UniqueID][]*listener),
		queue:    event.NewQueue[*message.Message](256),
		netQueue: event.NewQueue[*message.Message](64),
	}
	g.actors.Attach(g.proxies)
	g.stats.interval = opts.StatsInterval
	g.stats.reset(g.clock.RealTime())
	if g.loader != nil {
		g.mapChange = mapchange.New(g, g.loader, g.log.Named("mapchange"))
	}
	return g
}

func (g *GameManager) Logger() *zap.Logger               { return g.log }
func (g *GameManager) Clock() *system.Clock              { return g.clock }
func (g *GameManager) Scene() scene.Scene                { return g.scene }
func (g *GameManager) MachineInfo() *message.MachineInfo { return g.machine }
func (g *GameManager) MessageFactory() *message.Factory  { return g.factory }
func (g *GameManager) IsShutdown() bool                  { return g.shutdown }

// AddComponent registers c at priority p. Components are kept sorted by
// priority and, within one priority, by registration order.
func (g *GameManager) AddComponent(c Component, p Priority) error {
	if c == nil {
		return ErrNilComponent
	}
	if g.shutdown {
		return ErrShutdown
	}
	if g.GetComponentByName(c.Name()) != nil {
		g.log.Error("gm component rejected",
			zap.String("component", c.Name()),
			zap.Error(ErrDuplicateComponent))
		return fmt.Errorf("add component %q: %w", c.Name(), ErrDuplicateComponent)
	}

	// Always build a new slice so deliveries iterating the old one are not
	// disturbed.
	i := len(g.components)
	for j, e := range g.components {
		if e.priority.order > p.order {
			i = j
			break
		}
	}
	next := make([]*componentEntry, 0, len(g.components)+1)
	next = append(next, g.components[:i]...)
	next = append(next, &componentEntry{c: c, priority: p})
	next = append(next, g.components[i:]...)
	g.components = next

	if err := g.safeCall(c.Name(), "OnAddedToGM", func() error { c.OnAddedToGM(g); return nil }); err != nil {
		// A component that failed to attach is not registered.
		g.components = slices.DeleteFunc(slices.Clone(g.components), func(e *componentEntry) bool { return e.c == c })
		return fmt.Errorf("add component %q: %w", c.Name(), err)
	}
	g.log.Debug("gm component added", zap.String("component", c.Name()), zap.Stringer("priority", p))
	return nil
}

// RemoveComponent unregisters c. It stops receiving messages from the next
// delivery on.
func (g *GameManager) RemoveComponent(c Component) bool {
	for _, e := range g.components {
		if e.c == c && !e.removed {
			e.removed = true
			g.compDirty = true
			_ = g.safeCall(c.Name(), "OnRemovedFromGM", func() error { c.OnRemovedFromGM(); return nil })
			g.compact()
			return true
		}
	}
	return false
}

// GetComponentByName returns the registered component with that name or nil.
func (g *GameManager) GetComponentByName(name string) Component {
	for _, e := range g.components {
		if !e.removed && e.c.Name() == name {
			return e.c
		}
	}
	return nil
}

// GetAllComponents returns the registered components in delivery order.
func (g *GameManager) GetAllComponents() []Component {
	out := make([]Component, 0, len(g.components))
	for _, e := range g.components {
		if !e.removed {
			out = append(out, e.c)
		}
	}
	return out
}

// ComponentPriority reports the priority c was registered with.
func (g *GameManager) ComponentPriority(c Component) (Priority, bool) {
	for _, e := range g.components {
		if e.c == c && !e.removed {
			return e.priority, true
		}
	}
	return Priority{}, false
}

// compact drops removed components and listeners once no delivery is running.
func (g *GameManager) compact() {
	if g.depth > 0 {
		return
	}
	if g.compDirty {
		g.components = slices.DeleteFunc(slices.Clone(g.components), func(e *componentEntry) bool { return e.removed })
		g.compDirty = false
	}
	if g.lDirty {
		g.compactListeners()
		g.lDirty = false
	}
}

// Shutdown closes open maps, deletes every actor, gives components a last
// look at pending network traffic and removes them, lowest priority first.
// The game manager cannot be used afterwards.
func (g *GameManager) Shutdown() {
	if g.shutdown {
		return
	}
	g.log.Info("game manager shutting down",
		zap.Int("actors", len(g.order)),
		zap.Int("components", len(g.GetAllComponents())))

	if g.mapChange != nil {
		if g.mapChange.State() != mapchange.Idle {
			g.loadedMaps = g.mapChange.Abort()
		}
		for _, name := range g.loadedMaps {
			g.mapChange.CloseSingleMap(name, true)
		}
	}
	g.loadedMaps = nil
	g.DeleteAllActors(true)
	g.timers = nil

	g.flushNetwork()
	if dropped := len(g.queue.Drain()); dropped > 0 {
		g.log.Debug("dropped undelivered messages", zap.Int("count", dropped))
	}

	comps := g.GetAllComponents()
	for i := len(comps) - 1; i >= 0; i-- {
		g.RemoveComponent(comps[i])
	}
	g.global = make(map[*message.Type][]*listener)
	g.about = make(map[*message.Type]map[message.UniqueID][]*listener)
	g.shutdown = true
}
