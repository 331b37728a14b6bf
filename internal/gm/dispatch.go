package gm

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/core/arena"
	"github.com/dtsim/server/internal/message"
)

// listener binds an invokable on a proxy to a message type.
type listener struct {
	proxy     *actor.Proxy
	handle    arena.Handle
	invokable string
	removed   bool
}

// RegisterForMessages delivers every message of type t to the named
// invokable of p. Registering the same pair twice has no effect.
func (g *GameManager) RegisterForMessages(t *message.Type, p *actor.Proxy, invokable string) error {
	h, err := g.handleOf(p)
	if err != nil {
		return fmt.Errorf("register %s for %s: %w", p.Name(), t, err)
	}
	for _, l := range g.global[t] {
		if !l.removed && l.handle == h && l.invokable == invokable {
			return nil
		}
	}
	g.global[t] = append(g.global[t], &listener{proxy: p, handle: h, invokable: invokable})
	return nil
}

func (g *GameManager) UnregisterForMessages(t *message.Type, p *actor.Proxy, invokable string) {
	for _, l := range g.global[t] {
		if !l.removed && l.proxy == p && l.invokable == invokable {
			l.removed = true
			g.lDirty = true
		}
	}
	g.compact()
}

// RegisterForMessagesAboutActor delivers messages of type t about the actor
// with id about to the named invokable of p.
func (g *GameManager) RegisterForMessagesAboutActor(t *message.Type, about message.UniqueID, p *actor.Proxy, invokable string) error {
	h, err := g.handleOf(p)
	if err != nil {
		return fmt.Errorf("register %s for %s about %s: %w", p.Name(), t, about, err)
	}
	byActor := g.about[t]
	if byActor == nil {
		byActor = make(map[message.UniqueID][]*listener)
		g.about[t] = byActor
	}
	for _, l := range byActor[about] {
		if !l.removed && l.handle == h && l.invokable == invokable {
			return nil
		}
	}
	byActor[about] = append(byActor[about], &listener{proxy: p, handle: h, invokable: invokable})
	return nil
}

func (g *GameManager) UnregisterForMessagesAboutActor(t *message.Type, about message.UniqueID, p *actor.Proxy, invokable string) {
	for _, l := range g.about[t][about] {
		if !l.removed && l.proxy == p && l.invokable == invokable {
			l.removed = true
			g.lDirty = true
		}
	}
	g.compact()
}

// unregisterAll drops every listener p registered, global or about others.
func (g *GameManager) unregisterAll(p *actor.Proxy) {
	for _, ls := range g.global {
		for _, l := range ls {
			if l.proxy == p && !l.removed {
				l.removed = true
				g.lDirty = true
			}
		}
	}
	for _, byActor := range g.about {
		for _, ls := range byActor {
			for _, l := range ls {
				if l.proxy == p && !l.removed {
					l.removed = true
					g.lDirty = true
				}
			}
		}
	}
	g.compact()
}

// GlobalListenerCount returns the live listeners for t, for diagnostics.
func (g *GameManager) GlobalListenerCount(t *message.Type) int {
	n := 0
	for _, l := range g.global[t] {
		if !l.removed {
			n++
		}
	}
	return n
}

func (g *GameManager) compactListeners() {
	keep := func(ls []*listener) []*listener {
		return slices.DeleteFunc(slices.Clone(ls), func(l *listener) bool { return l.removed })
	}
	for t, ls := range g.global {
		if ls = keep(ls); len(ls) == 0 {
			delete(g.global, t)
		} else {
			g.global[t] = ls
		}
	}
	for t, byActor := range g.about {
		for id, ls := range byActor {
			if ls = keep(ls); len(ls) == 0 {
				delete(byActor, id)
			} else {
				byActor[id] = ls
			}
		}
		if len(byActor) == 0 {
			delete(g.about, t)
		}
	}
}

// SendMessage queues msg for delivery at the start of the next frame, or
// delivers it right away when its policy is Immediate.
func (g *GameManager) SendMessage(msg *message.Message) {
	if g.shutdown {
		g.log.Debug("message dropped after shutdown", zap.Stringer("type", msg.Type()))
		return
	}
	if msg.Source == nil {
		msg.Source = g.machine
	}
	if msg.Delivery == message.Immediate {
		g.deliver(msg)
		return
	}
	g.queue.Push(msg)
}

// ProcessMessage delivers msg synchronously regardless of its policy.
func (g *GameManager) ProcessMessage(msg *message.Message) {
	if g.shutdown {
		return
	}
	if msg.Source == nil {
		msg.Source = g.machine
	}
	g.deliver(msg)
}

// SendNetworkMessage queues msg for the components' DispatchNetworkMessage
// at the start of the next frame.
func (g *GameManager) SendNetworkMessage(msg *message.Message) {
	if g.shutdown {
		return
	}
	if msg.Source == nil {
		msg.Source = g.machine
	}
	g.netQueue.Push(msg)
}

// PendingMessages reports how many messages wait for the next frame.
func (g *GameManager) PendingMessages() int { return g.queue.Len() }

// RejectMessage answers reason with SERVER_REQUEST_REJECTED. Local requests
// get the reply locally, remote ones over the network.
func (g *GameManager) RejectMessage(reason *message.Message, cause string) {
	reply := g.factory.CreateMessage(message.ServerRequestRejected)
	reply.Causing = reason
	reply.Destination = reason.Source
	reply.AboutActorID = reason.AboutActorID
	_ = reply.SetStr(message.ParamCause, cause)
	if reason.Source == nil || reason.Source.Equal(g.machine) {
		g.SendMessage(reply)
	} else {
		g.SendNetworkMessage(reply)
	}
}

func (g *GameManager) flushNetwork() {
	for _, msg := range g.netQueue.Swap() {
		g.depth++
		for _, e := range g.components {
			if e.removed {
				continue
			}
			c := e.c
			_ = g.safeCall(c.Name(), "DispatchNetworkMessage", func() error { return c.DispatchNetworkMessage(msg) })
		}
		g.depth--
	}
	g.compact()
}

// deliver hands msg to the components in priority order, then to global
// listeners of its type, then to the about actor's own handlers, then to
// listeners registered about that actor.
func (g *GameManager) deliver(msg *message.Message) {
	g.depth++
	defer func() {
		g.depth--
		g.compact()
	}()
	g.stats.messages++

	for _, e := range g.components {
		if e.removed {
			continue
		}
		c := e.c
		start := time.Now()
		_ = g.safeCall(c.Name(), "ProcessMessage", func() error { return c.ProcessMessage(msg) })
		g.stats.observe(c.Name(), time.Since(start))
	}

	t := msg.Type()
	g.invokeAll(g.global[t], msg)

	if msg.AboutActorID.IsNull() {
		return
	}
	if p := g.liveActor(msg.AboutActorID); p != nil {
		for _, name := range p.SelfHandlers(t) {
			g.invoke(p, name, msg)
		}
	}
	if byActor := g.about[t]; byActor != nil {
		g.invokeAll(byActor[msg.AboutActorID], msg)
	}
}

// deliverToComponents is used for messages only GM components see.
func (g *GameManager) deliverToComponents(msg *message.Message) {
	g.depth++
	g.stats.messages++
	for _, e := range g.components {
		if e.removed {
			continue
		}
		c := e.c
		_ = g.safeCall(c.Name(), "ProcessMessage", func() error { return c.ProcessMessage(msg) })
	}
	g.depth--
	g.compact()
}

func (g *GameManager) invokeAll(ls []*listener, msg *message.Message) {
	for _, l := range ls {
		if l.removed || !g.actors.Alive(l.handle) {
			continue
		}
		g.invoke(l.proxy, l.invokable, msg)
	}
}

func (g *GameManager) invoke(p *actor.Proxy, name string, msg *message.Message) {
	fn, ok := p.GetInvokable(name)
	if !ok {
		g.log.Warn("invokable not found",
			zap.String("actor", p.Name()),
			zap.String("invokable", name),
			zap.Stringer("type", msg.Type()))
		return
	}
	_ = g.safeCall(p.Name(), name, func() error { return fn(msg) })
}

// safeCall runs fn with panic recovery so one failing component or actor
// cannot take down the frame. Failures are logged and counted.
func (g *GameManager) safeCall(who, what string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s %s panic: %v", who, what, rec)
		}
		if err != nil {
			g.stats.failures++
			g.log.Error("dispatch failed",
				zap.String("target", who),
				zap.String("call", what),
				zap.Error(err))
		}
	}()
	return fn()
}
