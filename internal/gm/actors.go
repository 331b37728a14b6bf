package gm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/core/arena"
	"github.com/dtsim/server/internal/message"
)

func (g *GameManager) handleOf(p *actor.Proxy) (arena.Handle, error) {
	h, ok := g.byID[p.ID()]
	if !ok || !g.actors.Alive(h) {
		return arena.Nil, ErrUnknownActor
	}
	if owner, _ := g.proxies.Get(h); owner != p {
		return arena.Nil, ErrUnknownActor
	}
	return h, nil
}

// AddActor puts p into the simulation. Local actors announce themselves with
// INFO_ACTOR_CREATED; remote ones are owned by another machine and only
// mirrored here.
func (g *GameManager) AddActor(p *actor.Proxy) error {
	if g.shutdown {
		return ErrShutdown
	}
	if _, ok := g.byID[p.ID()]; ok {
		g.log.Error("actor rejected",
			zap.String("actor", p.Name()),
			zap.Stringer("id", p.ID()),
			zap.Error(ErrDuplicateActor))
		return fmt.Errorf("add actor %s: %w", p.ID(), ErrDuplicateActor)
	}

	h := g.actors.Create()
	g.proxies.Set(h, p)
	g.byID[p.ID()] = h
	g.order = append(g.order, h)

	if n := p.Node(); n != nil && g.scene != nil {
		g.scene.AddChild(n)
	}
	_ = g.safeCall(p.Name(), "EnterWorld", func() error { p.EnterWorld(g); return nil })

	if !p.IsRemote() {
		created := g.factory.CreateMessage(message.InfoActorCreated)
		if err := actor.PopulateUpdate(p, created); err != nil {
			g.log.Warn("actor created message incomplete", zap.String("actor", p.Name()), zap.Error(err))
		}
		g.SendMessage(created)
	}
	g.log.Debug("actor added",
		zap.String("actor", p.Name()),
		zap.Stringer("type", p.ActorType()),
		zap.Bool("remote", p.IsRemote()))
	return nil
}

// PublishActor makes a local actor visible to other machines.
func (g *GameManager) PublishActor(id message.UniqueID) error {
	p := g.liveActor(id)
	if p == nil {
		return fmt.Errorf("publish %s: %w", id, ErrUnknownActor)
	}
	if p.IsRemote() {
		return fmt.Errorf("publish %s: %w", id, ErrActorRemote)
	}
	if p.IsPublished() {
		return nil
	}
	p.SetPublished()
	published := g.factory.CreateMessage(message.InfoActorPublished)
	published.AboutActorID = id
	published.SendingActorID = id
	g.SendMessage(published)
	return nil
}

// FindActorByID returns the actor with that id, including one that is
// deleted but not yet removed, or nil.
func (g *GameManager) FindActorByID(id message.UniqueID) *actor.Proxy {
	h, ok := g.byID[id]
	if !ok {
		return nil
	}
	p, _ := g.proxies.Get(h)
	return p
}

// liveActor is FindActorByID without deleted actors.
func (g *GameManager) liveActor(id message.UniqueID) *actor.Proxy {
	p := g.FindActorByID(id)
	if p == nil || p.IsDeleted() {
		return nil
	}
	return p
}

// GetAllActors returns the actors in the order they were added.
func (g *GameManager) GetAllActors() []*actor.Proxy {
	out := make([]*actor.Proxy, 0, len(g.order))
	for _, h := range g.order {
		if p, ok := g.proxies.Get(h); ok {
			out = append(out, p)
		}
	}
	return out
}

func (g *GameManager) ActorCount() int { return len(g.order) }

// DeleteActor schedules the actor for removal at the end of the frame. Its
// listeners are dropped at once so it receives nothing more.
func (g *GameManager) DeleteActor(id message.UniqueID) {
	h, ok := g.byID[id]
	if !ok {
		return
	}
	p, _ := g.proxies.Get(h)
	if p == nil || p.IsDeleted() {
		return
	}
	p.MarkDeleted()
	g.unregisterAll(p)
	g.clearTimersAbout(id)
	g.actors.Defer(h)

	if !p.IsRemote() {
		deleted := g.factory.CreateMessage(message.InfoActorDeleted)
		deleted.AboutActorID = id
		deleted.SendingActorID = id
		g.SendMessage(deleted)
	}
}

// DeleteAllActors schedules every actor for removal. With immediate set the
// removal happens before returning.
func (g *GameManager) DeleteAllActors(immediate bool) {
	for _, p := range g.GetAllActors() {
		g.DeleteActor(p.ID())
	}
	if immediate {
		g.removeDeletedActors()
	}
}

// removeDeletedActors takes deleted actors out of the world. Removal hooks
// may delete further actors; those go in the same pass.
func (g *GameManager) removeDeletedActors() int {
	n := g.actors.Flush(func(h arena.Handle) {
		p, ok := g.proxies.Get(h)
		if !ok {
			return
		}
		_ = g.safeCall(p.Name(), "LeaveWorld", func() error { p.LeaveWorld(); return nil })
		if node := p.Node(); node != nil && g.scene != nil {
			g.scene.RemoveChild(node)
		}
		g.unregisterAll(p)
		delete(g.byID, p.ID())
	})
	if n > 0 {
		live := g.order[:0]
		for _, h := range g.order {
			if g.actors.Alive(h) {
				live = append(live, h)
			}
		}
		g.order = live
		g.log.Debug("actors removed", zap.Int("count", n))
	}
	return n
}
