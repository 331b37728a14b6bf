package scripting

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/message"
)

const (
	ComponentType actor.ComponentType = "Script"

	// PropertyModule names the Lua table holding an actor's hooks.
	PropertyModule = "script"

	HookEnteredWorld = "on_entered_world"
	HookTick         = "on_tick"
	HookRemoved      = "on_removed_from_world"
)

// ScriptedType is an actor whose behavior lives in a Lua module named by its
// "script" property.
var ScriptedType = actor.Type{Category: "dtsim.script", Name: "Scripted"}

// Script runs Lua hooks for its owner. Property changes returned by a hook
// are applied to the owner, and a published owner announces them with
// INFO_ACTOR_UPDATED.
type Script struct {
	actor.BaseComponent
	engine *Engine
}

func NewScript(engine *Engine) *Script {
	return &Script{BaseComponent: actor.NewBaseComponent(ComponentType), engine: engine}
}

// Module returns the owner's script module, or "" when unset.
func (s *Script) Module() string {
	p := s.Owner()
	if p == nil {
		return ""
	}
	m, _ := p.Property(PropertyModule)
	return m
}

func (s *Script) OnEnteredWorld() {
	p := s.Owner()
	mod := s.Module()
	if p == nil || p.IsRemote() || mod == "" {
		return
	}
	if err := s.run(HookEnteredWorld, 0); err != nil {
		s.logger().Error("script hook failed",
			zap.String("actor", p.Name()),
			zap.String("hook", HookEnteredWorld),
			zap.Error(err))
		return
	}
	if s.engine.HasHook(mod, HookTick) {
		if err := s.RegisterForTicks(); err != nil {
			s.logger().Error("script tick registration failed", zap.String("actor", p.Name()), zap.Error(err))
		}
	}
}

func (s *Script) OnRemovedFromWorld() {
	p := s.Owner()
	if p == nil || p.IsRemote() || s.Module() == "" {
		return
	}
	if _, err := s.engine.CallHook(s.Module(), HookRemoved, p, 0); err != nil {
		s.logger().Warn("script hook failed",
			zap.String("actor", p.Name()),
			zap.String("hook", HookRemoved),
			zap.Error(err))
	}
}

func (s *Script) OnTickLocal(msg *message.Message) error {
	return s.run(HookTick, float64(message.ReadTick(msg).DeltaSim))
}

func (s *Script) OnTickRemote(*message.Message) error { return nil }

func (s *Script) run(hook string, dt float64) error {
	p := s.Owner()
	changes, err := s.engine.CallHook(s.Module(), hook, p, dt)
	if err != nil || len(changes) == 0 {
		return err
	}
	changed := false
	for _, k := range sortedKeys(changes) {
		if old, ok := p.Property(k); ok && old == changes[k] {
			continue
		}
		p.SetProperty(k, changes[k])
		changed = true
	}
	if changed && p.IsPublished() && p.Manager() != nil {
		m := p.Manager()
		upd := m.MessageFactory().CreateMessage(message.InfoActorUpdated)
		if err := actor.PopulateUpdate(p, upd); err != nil {
			return err
		}
		m.SendMessage(upd)
	}
	return nil
}

func (s *Script) logger() *zap.Logger {
	if p := s.Owner(); p != nil && p.Manager() != nil {
		return p.Manager().Logger()
	}
	return zap.L()
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

// RegisterActorType adds ScriptedType to lib. Its actors run hooks from e.
func RegisterActorType(lib *actor.Library, e *Engine) error {
	return lib.Register(ScriptedType, func(p *actor.Proxy) error {
		return p.AddComponent(NewScript(e))
	})
}
