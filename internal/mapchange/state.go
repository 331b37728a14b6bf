package mapchange

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/scene"
)

var (
	ErrChangeInProgress = errors.New("map change already in progress")
	ErrMapLoad          = errors.New("map load failed")
)

type State uint8

const (
	Idle State = iota
	Unload
	Load
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Unload:
		return "UNLOAD"
	case Load:
		return "LOAD"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Loader opens and closes maps.
type Loader interface {
	OpenMap(name string) ([]*actor.Proxy, error)
	CloseMap(name string, deleteLibraries bool) error
}

// Manager is what a map change needs from the game manager.
type Manager interface {
	AddActor(p *actor.Proxy) error
	DeleteActor(id message.UniqueID)
	SendMessage(msg *message.Message)
	MessageFactory() *message.Factory
}

// StateData walks a map change through UNLOAD and LOAD one map per call so a
// large change is spread over several frames.
type StateData struct {
	mgr    Manager
	loader Loader
	log    *zap.Logger

	state         State
	oldMaps       []string
	newMaps       []string
	addBillboards bool
	unloaded      int
	loaded        int

	actors map[string][]message.UniqueID
}

func New(mgr Manager, loader Loader, log *zap.Logger) *StateData {
	if log == nil {
		log = zap.NewNop()
	}
	return &StateData{
		mgr:    mgr,
		loader: loader,
		log:    log,
		actors: make(map[string][]message.UniqueID),
	}
}

func (d *StateData) State() State { return d.state }

func (d *StateData) OldMapNames() []string { return slices.Clone(d.oldMaps) }
func (d *StateData) NewMapNames() []string { return slices.Clone(d.newMaps) }
func (d *StateData) AddBillboards() bool   { return d.addBillboards }

// MapActors returns the ids of the actors added from a map this instance
// loaded.
func (d *StateData) MapActors(name string) []message.UniqueID {
	return slices.Clone(d.actors[name])
}

// BeginMapChange starts closing oldMaps and opening newMaps. It only works
// from IDLE.
func (d *StateData) BeginMapChange(oldMaps, newMaps []string, addBillboards bool) error {
	if d.state != Idle {
		return fmt.Errorf("begin map change in %s: %w", d.state, ErrChangeInProgress)
	}
	d.oldMaps = slices.Clone(oldMaps)
	d.newMaps = slices.Clone(newMaps)
	d.addBillboards = addBillboards
	d.unloaded = 0
	d.loaded = 0

	f := d.mgr.MessageFactory()
	begin := f.CreateMessage(message.InfoMapChangeBegin)
	_ = begin.SetStringList(message.ParamOldMaps, d.oldMaps)
	_ = begin.SetStringList(message.ParamNewMaps, d.newMaps)
	d.mgr.SendMessage(begin)
	for _, name := range d.oldMaps {
		d.mgr.SendMessage(f.NewMapMessage(message.InfoMapUnloadBegin, []string{name}))
	}

	d.state = Unload
	d.advance()
	d.log.Info("map change started",
		zap.Strings("old", d.oldMaps),
		zap.Strings("new", d.newMaps),
		zap.Stringer("state", d.state))
	return nil
}

// ContinueMapChange does one step of the change. Open failures come back
// wrapped in ErrMapLoad and leave the state untouched; the caller is
// expected to Abort.
func (d *StateData) ContinueMapChange() error {
	switch d.state {
	case Unload:
		name := d.oldMaps[d.unloaded]
		d.CloseSingleMap(name, true)
		d.unloaded++
		d.mgr.SendMessage(d.mgr.MessageFactory().NewMapMessage(message.InfoMapUnloaded, []string{name}))
	case Load:
		name := d.newMaps[d.loaded]
		if err := d.LoadSingleMap(name); err != nil {
			return err
		}
		d.loaded++
		d.mgr.SendMessage(d.mgr.MessageFactory().NewMapMessage(message.InfoMapLoaded, []string{name}))
	default:
		return nil
	}
	d.advance()
	return nil
}

// advance moves past phases that have nothing left to do.
func (d *StateData) advance() {
	if d.state == Unload && d.unloaded >= len(d.oldMaps) {
		d.state = Load
	}
	if d.state == Load && d.loaded >= len(d.newMaps) {
		d.state = Idle
		done := d.mgr.MessageFactory().CreateMessage(message.InfoMapChanged)
		_ = done.SetStringList(message.ParamOldMaps, d.oldMaps)
		_ = done.SetStringList(message.ParamNewMaps, d.newMaps)
		d.mgr.SendMessage(done)
		d.log.Info("map change complete", zap.Strings("maps", d.newMaps))
	}
}

// Abort drops an in-flight change and returns the maps it leaves open: old
// maps not yet closed, then new maps already opened. With no change in flight
// it returns nil.
func (d *StateData) Abort() []string {
	if d.state == Idle {
		return nil
	}
	open := slices.Concat(d.oldMaps[d.unloaded:], d.newMaps[:d.loaded])
	d.log.Warn("map change aborted",
		zap.Stringer("state", d.state),
		zap.Strings("open", open))
	d.state = Idle
	return open
}

// LoadSingleMap opens name and adds its actors to the game manager.
func (d *StateData) LoadSingleMap(name string) error {
	proxies, err := d.loader.OpenMap(name)
	if err != nil {
		return fmt.Errorf("%w: open %q: %w", ErrMapLoad, name, err)
	}
	ids := make([]message.UniqueID, 0, len(proxies))
	for _, p := range proxies {
		if d.addBillboards && p.Node() == nil {
			p.SetNode(scene.NewBillboard(p.Name()))
		}
		if err := d.mgr.AddActor(p); err != nil {
			d.log.Error("map actor rejected",
				zap.String("map", name),
				zap.String("actor", p.Name()),
				zap.Error(err))
			continue
		}
		ids = append(ids, p.ID())
	}
	d.actors[name] = ids
	d.log.Debug("map opened", zap.String("map", name), zap.Int("actors", len(ids)))
	return nil
}

// CloseSingleMap deletes the actors that came from name and closes it. A
// close failure is logged and the map counts as closed.
func (d *StateData) CloseSingleMap(name string, deleteLibraries bool) {
	for _, id := range d.actors[name] {
		d.mgr.DeleteActor(id)
	}
	delete(d.actors, name)
	if err := d.loader.CloseMap(name, deleteLibraries); err != nil {
		d.log.Error("map close failed", zap.String("map", name), zap.Error(err))
	}
}
