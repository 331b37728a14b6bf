package net

import (
	"bytes"
	"encoding/binary"
	"errors"
	gonet "net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"type":"Tick Local"}`)))
	require.NoError(t, WriteFrame(&buf, []byte("second")))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"Tick Local"}`, string(first))
	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "second", string(second))

	_, err = ReadFrame(&buf)
	assert.Error(t, err)
}

func TestFrame_RejectsOversized(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)
	_, err := ReadFrame(bytes.NewReader(header[:]))
	assert.True(t, errors.Is(err, ErrFrameTooLarge))

	err = WriteFrame(&bytes.Buffer{}, make([]byte, MaxFrameSize+1))
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
	assert.Error(t, WriteFrame(&bytes.Buffer{}, nil))
}

func receive(t *testing.T, s *Session) []byte {
	t.Helper()
	select {
	case data := <-s.InQueue:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestSession_SendIsBufferedUntilFlush(t *testing.T) {
	left, right := gonet.Pipe()
	a := NewSession(left, 1, 8, 8, 0, zap.NewNop())
	b := NewSession(right, 2, 8, 8, 0, zap.NewNop())
	a.Start()
	b.Start()
	defer a.Close()
	defer b.Close()

	a.Send([]byte("hello"))
	select {
	case <-b.InQueue:
		t.Fatal("frame delivered before FlushOutput")
	case <-time.After(50 * time.Millisecond):
	}

	a.FlushOutput()
	assert.Equal(t, "hello", string(receive(t, b)))
}

func TestSession_PeerCloseEndsSession(t *testing.T) {
	left, right := gonet.Pipe()
	a := NewSession(left, 1, 8, 8, 0, zap.NewNop())
	a.Start()
	right.Close()

	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not notice the closed peer")
	}
	assert.True(t, a.IsClosed())

	a.Send([]byte("ignored"))
	a.FlushOutput()
}

func TestSession_FullOutQueueDisconnects(t *testing.T) {
	left, right := gonet.Pipe()
	defer right.Close()
	a := NewSession(left, 1, 1, 1, 0, zap.NewNop())
	// Writer not started, so the queue stays full.
	a.Send([]byte("one"))
	a.Send([]byte("two"))
	a.FlushOutput()
	assert.True(t, a.IsClosed())
}

func TestServer_AcceptAndDial(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", Options{}, zap.NewNop())
	require.NoError(t, err)
	go srv.AcceptLoop()
	defer srv.Shutdown()

	client, err := Dial(srv.Addr().String(), time.Second, Options{}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	var peer *Session
	select {
	case peer = <-srv.NewSessions():
	case <-time.After(2 * time.Second):
		t.Fatal("no session accepted")
	}
	defer peer.Close()
	assert.NotEqual(t, client.ID, peer.ID)

	client.Send([]byte("ping"))
	client.FlushOutput()
	assert.Equal(t, "ping", string(receive(t, peer)))

	peer.Send([]byte("pong"))
	peer.FlushOutput()
	assert.Equal(t, "pong", string(receive(t, client)))

	srv.NotifyDead(peer.ID)
	assert.Equal(t, peer.ID, <-srv.DeadSessions())
}

func TestSessionStore_ForEachInIDOrder(t *testing.T) {
	store := NewSessionStore()
	for _, id := range []uint64{3, 1, 2} {
		left, right := gonet.Pipe()
		defer left.Close()
		defer right.Close()
		store.Add(NewSession(left, id, 1, 1, 0, zap.NewNop()))
	}
	var ids []uint64
	store.ForEach(func(s *Session) { ids = append(ids, s.ID) })
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	store.Remove(2)
	assert.Nil(t, store.Get(2))
	assert.Equal(t, 2, store.Count())
}
