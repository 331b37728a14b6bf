package component

import (
	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/gm"
	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/net"
)

const NetworkName = "NetworkComponent"

// NetworkOptions configures a Network component.
type NetworkOptions struct {
	// Authority marks the machine that owns simulation time. It forwards
	// commands; other machines forward requests.
	Authority  bool
	MaxPerTick int
}

// Network moves encoded messages between this game manager and its peers.
// Inbound frames are drained on TICK_LOCAL and output is flushed on
// TICK_END_OF_FRAME, both on the frame goroutine.
type Network struct {
	gm.BaseComponent
	server     *net.Server
	sessions   *net.SessionStore
	machines   map[uint64]*message.MachineInfo
	maxPerTick int
	forward    map[*message.Type]bool
	published  map[message.UniqueID]bool
	log        *zap.Logger
}

// NewNetwork creates the component. server may be nil on a machine that
// only dials out.
func NewNetwork(server *net.Server, opts NetworkOptions, log *zap.Logger) *Network {
	if opts.MaxPerTick <= 0 {
		opts.MaxPerTick = 32
	}
	n := &Network{
		BaseComponent: gm.NewBaseComponent(NetworkName),
		server:        server,
		sessions:      net.NewSessionStore(),
		machines:      make(map[uint64]*message.MachineInfo),
		maxPerTick:    opts.MaxPerTick,
		forward:       make(map[*message.Type]bool),
		published:     make(map[message.UniqueID]bool),
		log:           log,
	}
	var types []*message.Type
	if opts.Authority {
		types = []*message.Type{
			message.InfoActorPublished, message.InfoActorUpdated, message.InfoActorDeleted,
			message.CommandPause, message.CommandResume, message.CommandSetTime,
		}
	} else {
		types = []*message.Type{message.RequestPause, message.RequestResume, message.RequestSetTime}
	}
	for _, t := range types {
		n.forward[t] = true
	}
	return n
}

// AddSession attaches an already connected session, typically one from
// net.Dial.
func (n *Network) AddSession(s *net.Session) {
	n.sessions.Add(s)
	n.log.Info("session attached", zap.Uint64("session", s.ID), zap.String("ip", s.IP))
}

func (n *Network) SessionCount() int { return n.sessions.Count() }

// SendPacketToAll buffers data for every connected peer.
func (n *Network) SendPacketToAll(data []byte) {
	n.sessions.ForEach(func(s *net.Session) {
		s.Send(data)
	})
}

func (n *Network) ProcessMessage(msg *message.Message) error {
	switch msg.Type() {
	case message.TickLocal:
		n.poll()
		return nil
	case message.TickEndOfFrame:
		n.flush()
		return nil
	}
	if n.shouldForward(msg) {
		return n.dispatch(msg)
	}
	return nil
}

func (n *Network) DispatchNetworkMessage(msg *message.Message) error {
	return n.dispatch(msg)
}

func (n *Network) OnRemovedFromGM() {
	n.flush()
	n.sessions.ForEach(func(s *net.Session) {
		s.Close()
	})
	n.BaseComponent.OnRemovedFromGM()
}

func (n *Network) shouldForward(msg *message.Message) bool {
	if !n.forward[msg.Type()] {
		return false
	}
	if msg.Source != nil && !msg.Source.Equal(n.GameManager().MachineInfo()) {
		return false
	}
	id := msg.AboutActorID
	switch msg.Type() {
	case message.InfoActorPublished:
		n.published[id] = true
	case message.InfoActorUpdated:
		return n.published[id]
	case message.InfoActorDeleted:
		if !n.published[id] {
			return false
		}
		delete(n.published, id)
	}
	return true
}

// dispatch encodes msg and queues it for the peer it is addressed to, or
// for every peer when it has no destination.
func (n *Network) dispatch(msg *message.Message) error {
	out := msg
	// Peers learn about a published actor through a full creation message.
	if msg.Type() == message.InfoActorPublished {
		if p := n.GameManager().FindActorByID(msg.AboutActorID); p != nil {
			out = n.GameManager().MessageFactory().CreateMessage(message.InfoActorCreated)
			if err := actor.PopulateUpdate(p, out); err != nil {
				return err
			}
		}
	}
	s, err := out.ToString()
	if err != nil {
		return err
	}
	data := []byte(s)

	if out.Destination == nil {
		n.SendPacketToAll(data)
		return nil
	}
	for id, m := range n.machines {
		if m.Equal(out.Destination) {
			if sess := n.sessions.Get(id); sess != nil {
				sess.Send(data)
				return nil
			}
		}
	}
	n.log.Debug("no session for destination",
		zap.Stringer("type", out.Type()),
		zap.Stringer("destination", out.Destination))
	return nil
}

func (n *Network) poll() {
	if n.server != nil {
	accept:
		for {
			select {
			case sess := <-n.server.NewSessions():
				n.sessions.Add(sess)
			default:
				break accept
			}
		}
	dead:
		for {
			select {
			case id := <-n.server.DeadSessions():
				n.drop(id)
			default:
				break dead
			}
		}
	}

	for id, sess := range n.sessions.Raw() {
		n.drain(sess)
		if sess.IsClosed() {
			if n.server != nil {
				n.server.NotifyDead(id)
			}
			n.drop(id)
		}
	}
}

func (n *Network) drain(sess *net.Session) {
	for i := 0; i < n.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			n.receive(sess, data)
		default:
			return
		}
	}
}

func (n *Network) receive(sess *net.Session, data []byte) {
	name, category, ok := message.PeekTypeName(data)
	if !ok {
		n.log.Debug("frame without message type", zap.Uint64("session", sess.ID))
		return
	}
	// Ticks and frame messages never cross machines.
	if category == message.CategoryTick || category == message.CategorySystem {
		n.log.Debug("local-only message from peer dropped",
			zap.Uint64("session", sess.ID),
			zap.String("type", name))
		return
	}

	g := n.GameManager()
	msg, err := g.MessageFactory().FromString(string(data))
	if err != nil {
		n.log.Debug("undecodable message",
			zap.Uint64("session", sess.ID),
			zap.String("type", name),
			zap.Error(err))
		return
	}
	if msg.Source == nil || msg.Source.Equal(g.MachineInfo()) {
		return
	}
	if _, known := n.machines[sess.ID]; !known {
		n.machines[sess.ID] = msg.Source
		connected := g.MessageFactory().CreateMessage(message.InfoClientConnected)
		connected.Source = msg.Source
		g.SendMessage(connected)
		n.log.Info("peer identified",
			zap.Uint64("session", sess.ID),
			zap.Stringer("machine", msg.Source))
	}
	msg.Delivery = message.Queued
	g.SendMessage(msg)
}

func (n *Network) drop(id uint64) {
	if n.sessions.Get(id) == nil {
		return
	}
	n.sessions.Remove(id)
	m, known := n.machines[id]
	delete(n.machines, id)
	n.log.Info("peer disconnected", zap.Uint64("session", id))
	if known {
		g := n.GameManager()
		notify := g.MessageFactory().CreateMessage(message.NetClientNotifyDisconnect)
		notify.Source = m
		g.SendMessage(notify)
	}
}

func (n *Network) flush() {
	n.sessions.ForEach(func(s *net.Session) {
		s.FlushOutput()
	})
}
