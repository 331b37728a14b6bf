package net

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Options sizes the per-session queues.
type Options struct {
	InQueueSize  int
	OutQueueSize int
	MaxPerSecond int // inbound frames per second, 0 = unlimited
}

func (o Options) withDefaults() Options {
	if o.InQueueSize <= 0 {
		o.InQueueSize = 128
	}
	if o.OutQueueSize <= 0 {
		o.OutQueueSize = 256
	}
	return o
}

// Server accepts TCP connections and creates Sessions.
// New/dead sessions are communicated to the frame loop via channels.
type Server struct {
	listener net.Listener
	nextID   *atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64
	opts     Options
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewServer(bindAddr string, opts Options, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", bindAddr, err)
	}
	return &Server{
		listener: ln,
		nextID:   &sessionIDs,
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		opts:     opts.withDefaults(),
		log:      log,
		closeCh:  make(chan struct{}),
	}, nil
}

// sessionIDs is shared by accepted and dialed sessions so ids stay unique
// within the process.
var sessionIDs atomic.Uint64

// AcceptLoop runs in its own goroutine. It accepts connections, starts their
// sessions and pushes them onto the NewSessions channel.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		sess := NewSession(conn, s.nextID.Add(1), s.opts.InQueueSize, s.opts.OutQueueSize, s.opts.MaxPerSecond, s.log)
		sess.Start()
		s.log.Info("peer connected", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))

		select {
		case s.newConns <- sess:
		default:
			s.log.Warn("connection queue full, rejecting peer")
			sess.Close()
		}
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the frame loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Dial connects to a remote simulation and starts the session.
func Dial(addr string, timeout time.Duration, opts Options, log *zap.Logger) (*Session, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	opts = opts.withDefaults()
	sess := NewSession(conn, sessionIDs.Add(1), opts.InQueueSize, opts.OutQueueSize, opts.MaxPerSecond, log)
	sess.Start()
	log.Info("connected to peer", zap.Uint64("session", sess.ID), zap.String("addr", addr))
	return sess, nil
}
