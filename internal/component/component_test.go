package component

import (
	"context"
	gonet "net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/core/system"
	"github.com/dtsim/server/internal/gm"
	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/net"
	"github.com/dtsim/server/internal/persist"
)

// capture keeps every message delivered to it.
type capture struct {
	gm.BaseComponent
	msgs []*message.Message
}

func newCapture() *capture {
	return &capture{BaseComponent: gm.NewBaseComponent("capture")}
}

func (c *capture) ProcessMessage(msg *message.Message) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capture) of(t *message.Type) []*message.Message {
	var out []*message.Message
	for _, m := range c.msgs {
		if m.Type() == t {
			out = append(out, m)
		}
	}
	return out
}

func newLibrary(t *testing.T) *actor.Library {
	t.Helper()
	lib := actor.NewLibrary()
	require.NoError(t, RegisterActorTypes(lib))
	return lib
}

func newGM(t *testing.T, name string) (*gm.GameManager, *capture) {
	t.Helper()
	g := gm.New(gm.Options{Machine: message.NewMachineInfo(name), Clock: system.NewClock()})
	c := newCapture()
	require.NoError(t, g.AddComponent(c, gm.Lowest))
	return g, c
}

func remoteCreated(g *gm.GameManager, from *message.MachineInfo, id message.UniqueID, props ...string) *message.Message {
	m := g.MessageFactory().CreateMessage(message.InfoActorCreated)
	m.Source = from
	m.AboutActorID = id
	_ = m.SetStr(message.ParamActorCategory, StaticType.Category)
	_ = m.SetStr(message.ParamActorType, StaticType.Name)
	_ = m.SetStr(message.ParamActorName, "tank")
	_ = m.SetStringList(message.ParamProperties, props)
	return m
}

func TestProcessor_MirrorsRemoteActors(t *testing.T) {
	g, _ := newGM(t, "local")
	require.NoError(t, g.AddComponent(NewProcessor(newLibrary(t), false, zap.NewNop()), gm.Highest))
	remote := message.NewMachineInfo("remote")
	id := message.NewUniqueID()

	g.SendMessage(remoteCreated(g, remote, id, "speed=3"))
	g.PreFrame(0, 0)

	p := g.FindActorByID(id)
	require.NotNil(t, p)
	assert.True(t, p.IsRemote())
	assert.Equal(t, "tank", p.Name())
	v, _ := p.Property("speed")
	assert.Equal(t, "3", v)

	g.SendMessage(remoteCreated(g, remote, id, "speed=4"))
	g.PreFrame(0, 0)
	v, _ = p.Property("speed")
	assert.Equal(t, "4", v)

	del := g.MessageFactory().CreateMessage(message.InfoActorDeleted)
	del.Source = remote
	del.AboutActorID = id
	g.SendMessage(del)
	g.PreFrame(0, 0)
	assert.Nil(t, g.FindActorByID(id))
}

func TestProcessor_IgnoresLocalAndUnknown(t *testing.T) {
	g, _ := newGM(t, "local")
	require.NoError(t, g.AddComponent(NewProcessor(newLibrary(t), false, zap.NewNop()), gm.Highest))

	local := actor.NewProxy(StaticType, "mine")
	require.NoError(t, g.AddActor(local))
	g.PreFrame(0, 0)

	// A remote update must not touch a local actor.
	g.SendMessage(remoteCreated(g, message.NewMachineInfo("remote"), local.ID(), "owner=them"))
	// Unknown types are skipped.
	alien := remoteCreated(g, message.NewMachineInfo("remote"), message.NewUniqueID())
	_ = alien.SetStr(message.ParamActorType, "Alien")
	g.SendMessage(alien)
	g.PreFrame(0, 0)

	_, ok := local.Property("owner")
	assert.False(t, ok)
	assert.False(t, local.IsRemote())
	assert.Equal(t, 1, g.ActorCount())
}

func TestProcessor_AuthorityTurnsRequestsIntoCommands(t *testing.T) {
	g, c := newGM(t, "server")
	require.NoError(t, g.AddComponent(NewProcessor(newLibrary(t), true, zap.NewNop()), gm.Highest))
	f := g.MessageFactory()

	g.SendMessage(f.CreateMessage(message.RequestPause))
	g.PreFrame(0, 0)
	assert.False(t, g.IsPaused(), "the command lands a frame later")
	g.PreFrame(0, 0)
	assert.True(t, g.IsPaused())
	require.Len(t, c.of(message.CommandPause), 1)
	assert.Same(t, message.RequestPause, c.of(message.CommandPause)[0].Causing.Type())

	g.SendMessage(f.CreateMessage(message.RequestPause))
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	require.Len(t, c.of(message.ServerRequestRejected), 1)

	setTime := f.CreateMessage(message.RequestSetTime)
	_ = setTime.SetDouble(message.ParamSimTime, 100)
	_ = setTime.SetFloat(message.ParamTimeScale, 2)
	g.SendMessage(setTime)
	bad := f.CreateMessage(message.RequestSetTime)
	_ = bad.SetFloat(message.ParamTimeScale, 0)
	g.SendMessage(bad)
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)

	assert.Equal(t, 2.0, g.Clock().Scale())
	assert.Equal(t, 100*time.Second, g.Clock().SimTime())
	assert.Len(t, c.of(message.ServerRequestRejected), 2)
}

func TestProcessor_WithoutAuthorityIgnoresRequests(t *testing.T) {
	g, c := newGM(t, "client")
	require.NoError(t, g.AddComponent(NewProcessor(newLibrary(t), false, zap.NewNop()), gm.Highest))

	g.SendMessage(g.MessageFactory().CreateMessage(message.RequestPause))
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	assert.False(t, g.IsPaused())
	assert.Empty(t, c.of(message.CommandPause))

	g.SendMessage(g.MessageFactory().CreateMessage(message.CommandPause))
	g.PreFrame(0, 0)
	assert.True(t, g.IsPaused())
}

func loggerRequest(g *gm.GameManager, t *message.Type, set func(m *message.Message)) {
	m := g.MessageFactory().CreateMessage(t)
	if set != nil {
		set(m)
	}
	g.SendMessage(m)
}

func TestServerLogger_RecordAndPlayback(t *testing.T) {
	g, c := newGM(t, "server")
	store := persist.NewMemoryLogStore()
	logger := NewServerLogger(store, zap.NewNop())
	require.NoError(t, g.AddComponent(logger, gm.Lower))
	f := g.MessageFactory()

	loggerRequest(g, message.LogReqSetLog, func(m *message.Message) { _ = m.SetStr(message.ParamLogName, "run1") })
	loggerRequest(g, message.LogReqChangeStateRecord, nil)
	loggerRequest(g, message.LogReqAddIgnoredType, func(m *message.Message) {
		_ = m.SetStr(message.ParamMessageType, message.InfoMapsClosed.Name())
	})
	g.SendMessage(f.NewMapMessage(message.InfoMapsOpened, []string{"a"}))
	g.SendMessage(f.NewMapMessage(message.InfoMapsClosed, []string{"a"}))
	g.PreFrame(0, 0)
	assert.Equal(t, LoggerRecord, logger.State())
	assert.EqualValues(t, 1, logger.Count())

	g.Clock().Advance(2 * time.Second)
	g.SendMessage(f.NewMapMessage(message.InfoMapsOpened, []string{"b"}))
	loggerRequest(g, message.LogReqInsertTag, func(m *message.Message) { _ = m.SetStr(message.ParamTagName, "contact") })
	g.PreFrame(0, 0)
	loggerRequest(g, message.LogReqGetTags, nil)
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	tags := c.of(message.LogInfoTags)
	require.Len(t, tags, 1)
	list, _ := tags[0].GetStringList(message.ParamTags)
	assert.Equal(t, []string{"contact@2.000"}, list)

	entries, err := store.Entries(context.Background(), "run1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 0.0, entries[0].SimTime)
	assert.Equal(t, 2.0, entries[1].SimTime)

	loggerRequest(g, message.LogReqChangeStatePlayback, nil)
	g.PreFrame(0, 0)
	assert.Equal(t, LoggerPlayback, logger.State())

	c.msgs = nil
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	opened := c.of(message.InfoMapsOpened)
	require.Len(t, opened, 1)
	assert.Equal(t, []string{"a"}, message.MapNames(opened[0]))
	assert.False(t, g.IsPaused())

	g.Clock().Advance(2 * time.Second)
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	opened = c.of(message.InfoMapsOpened)
	require.Len(t, opened, 2)
	assert.Equal(t, []string{"b"}, message.MapNames(opened[1]))
	assert.True(t, g.IsPaused(), "playback pauses at the end of the log")
	assert.Len(t, c.of(message.LogInfoPlaybackEndOfMessages), 1)

	loggerRequest(g, message.LogReqChangeStateIdle, nil)
	loggerRequest(g, message.LogReqGetStatus, nil)
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	statuses := c.of(message.LogInfoStatus)
	require.NotEmpty(t, statuses)
	state, _ := statuses[len(statuses)-1].GetEnum(message.ParamLoggerState)
	assert.Equal(t, "IDLE", state)
}

func TestServerLogger_Rejections(t *testing.T) {
	g, c := newGM(t, "server")
	logger := NewServerLogger(persist.NewMemoryLogStore(), zap.NewNop())
	require.NoError(t, g.AddComponent(logger, gm.Lower))

	loggerRequest(g, message.LogReqChangeStateRecord, nil)
	loggerRequest(g, message.LogReqChangeStatePlayback, nil)
	loggerRequest(g, message.LogReqInsertTag, func(m *message.Message) { _ = m.SetStr(message.ParamTagName, "x") })
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	assert.Len(t, c.of(message.ServerRequestRejected), 3)
	assert.Equal(t, LoggerIdle, logger.State())

	logger.SetLogName("missing")
	loggerRequest(g, message.LogReqChangeStatePlayback, nil)
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	assert.Len(t, c.of(message.ServerRequestRejected), 4)

	loggerRequest(g, message.LogReqSetLog, func(m *message.Message) { _ = m.SetStr(message.ParamLogName, "kept") })
	loggerRequest(g, message.LogReqChangeStateRecord, nil)
	loggerRequest(g, message.LogReqSetLog, func(m *message.Message) { _ = m.SetStr(message.ParamLogName, "other") })
	loggerRequest(g, message.LogReqDeleteLog, func(m *message.Message) { _ = m.SetStr(message.ParamLogName, "kept") })
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	assert.Equal(t, "kept", logger.LogName())
	assert.Len(t, c.of(message.ServerRequestRejected), 6)

	loggerRequest(g, message.LogReqChangeStateIdle, nil)
	loggerRequest(g, message.LogReqGetLogs, nil)
	g.PreFrame(0, 0)
	g.PreFrame(0, 0)
	logs := c.of(message.LogInfoLogs)
	require.Len(t, logs, 1)
	names, _ := logs[0].GetStringList(message.ParamLogNames)
	assert.Equal(t, []string{"kept"}, names)
}

func TestServerLogger_IgnoredActors(t *testing.T) {
	g, _ := newGM(t, "server")
	logger := NewServerLogger(persist.NewMemoryLogStore(), zap.NewNop())
	require.NoError(t, g.AddComponent(logger, gm.Lower))
	quiet := message.NewUniqueID()

	logger.SetLogName("run")
	loggerRequest(g, message.LogReqChangeStateRecord, nil)
	loggerRequest(g, message.LogReqAddIgnoredActor, func(m *message.Message) { _ = m.SetActorID(message.ParamIgnoredActor, quiet) })
	for _, about := range []message.UniqueID{quiet, message.NewUniqueID()} {
		m := g.MessageFactory().CreateMessage(message.InfoActorUpdated)
		m.AboutActorID = about
		g.SendMessage(m)
	}
	g.PreFrame(0, 0)
	assert.EqualValues(t, 1, logger.Count())

	loggerRequest(g, message.LogReqClearIgnoreList, nil)
	m := g.MessageFactory().CreateMessage(message.InfoActorUpdated)
	m.AboutActorID = quiet
	g.SendMessage(m)
	g.PreFrame(0, 0)
	assert.EqualValues(t, 2, logger.Count())
}

// link connects two game managers through an in-memory connection.
func link(t *testing.T, a, b *Network) {
	t.Helper()
	left, right := gonet.Pipe()
	sa := net.NewSession(left, 1, 64, 64, 0, zap.NewNop())
	sb := net.NewSession(right, 2, 64, 64, 0, zap.NewNop())
	sa.Start()
	sb.Start()
	a.AddSession(sa)
	b.AddSession(sb)
	t.Cleanup(func() {
		sa.Close()
		sb.Close()
	})
}

func frameUntil(g *gm.GameManager, cond func() bool) func() bool {
	return func() bool {
		g.PreFrame(0, 0)
		return cond()
	}
}

func TestNetwork_PublishAndRequestRoundTrip(t *testing.T) {
	server, _ := newGM(t, "server")
	client, clientSeen := newGM(t, "client")

	serverNet := NewNetwork(nil, NetworkOptions{Authority: true}, zap.NewNop())
	clientNet := NewNetwork(nil, NetworkOptions{}, zap.NewNop())
	require.NoError(t, server.AddComponent(NewProcessor(newLibrary(t), true, zap.NewNop()), gm.Highest))
	require.NoError(t, server.AddComponent(serverNet, gm.Normal))
	require.NoError(t, client.AddComponent(NewProcessor(newLibrary(t), false, zap.NewNop()), gm.Highest))
	require.NoError(t, client.AddComponent(clientNet, gm.Normal))
	link(t, serverNet, clientNet)

	tank := actor.NewProxy(StaticType, "tank")
	tank.SetProperty("fuel", "full")
	require.NoError(t, server.AddActor(tank))
	require.NoError(t, server.PublishActor(tank.ID()))
	server.PreFrame(0, 0)

	require.Eventually(t, frameUntil(client, func() bool { return client.FindActorByID(tank.ID()) != nil }),
		2*time.Second, 5*time.Millisecond)
	mirror := client.FindActorByID(tank.ID())
	assert.True(t, mirror.IsRemote())
	fuel, _ := mirror.Property("fuel")
	assert.Equal(t, "full", fuel)
	assert.Len(t, clientSeen.of(message.InfoClientConnected), 1)

	client.SendMessage(client.MessageFactory().CreateMessage(message.RequestPause))
	client.PreFrame(0, 0)
	require.Eventually(t, frameUntil(server, server.IsPaused), 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, frameUntil(client, client.IsPaused), 2*time.Second, 5*time.Millisecond)

	server.DeleteActor(tank.ID())
	server.PreFrame(0, 0)
	server.PreFrame(0, 0)
	require.Eventually(t, frameUntil(client, func() bool { return client.FindActorByID(tank.ID()) == nil }),
		2*time.Second, 5*time.Millisecond)
}

func TestNetwork_DropsLocalOnlyTraffic(t *testing.T) {
	g, seen := newGM(t, "local")
	n := NewNetwork(nil, NetworkOptions{}, zap.NewNop())
	require.NoError(t, g.AddComponent(n, gm.Normal))

	left, right := gonet.Pipe()
	peer := net.NewSession(left, 10, 8, 8, 0, zap.NewNop())
	local := net.NewSession(right, 11, 8, 8, 0, zap.NewNop())
	peer.Start()
	local.Start()
	defer peer.Close()
	n.AddSession(local)

	remote := message.NewFactory(nil, message.NewMachineInfo("remote"))
	tick, err := remote.NewTick(message.TickLocal, message.TickInfo{}).ToString()
	require.NoError(t, err)
	opened, err := remote.NewMapMessage(message.InfoMapsOpened, []string{"x"}).ToString()
	require.NoError(t, err)
	peer.Send([]byte(tick))
	peer.Send([]byte("not json"))
	peer.Send([]byte(opened))
	peer.FlushOutput()

	require.Eventually(t, frameUntil(g, func() bool { return len(seen.of(message.InfoMapsOpened)) == 1 }),
		2*time.Second, 5*time.Millisecond)
	for _, m := range seen.of(message.TickLocal) {
		assert.True(t, m.Source.Equal(g.MachineInfo()), "ticks from peers must not be delivered")
	}

	peer.Close()
	require.Eventually(t, frameUntil(g, func() bool { return len(seen.of(message.NetClientNotifyDisconnect)) == 1 }),
		2*time.Second, 5*time.Millisecond)
	assert.Zero(t, n.SessionCount())
}
