package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/core/system"
	"github.com/dtsim/server/internal/gm"
	"github.com/dtsim/server/internal/message"
)

const patrolLua = `
patrol = {}

function patrol.on_entered_world(self)
  return { state = "ready", origin = self.properties.start or "none" }
end

function patrol.on_tick(self, dt)
  local n = tonumber(self.properties.ticks or "0") + 1
  return { ticks = n, last_dt = dt }
end
`

const beaconLua = `
beacon = {}

function beacon.on_entered_world(self)
  log.info("beacon " .. self.name)
  return { lit = true }
end
`

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	writeScript(t, dir, "patrol.lua", patrolLua)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "actors"), 0o755))
	writeScript(t, filepath.Join(dir, "actors"), "beacon.lua", beaconLua)
	writeScript(t, dir, "notes.txt", "not lua")

	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestEngine_LoadsScriptDirs(t *testing.T) {
	e := newEngine(t)
	assert.True(t, e.HasModule("patrol"))
	assert.True(t, e.HasModule("beacon"))
	assert.False(t, e.HasModule("missing"))
	assert.True(t, e.HasHook("patrol", HookTick))
	assert.False(t, e.HasHook("beacon", HookTick))
}

func TestEngine_MissingDirIsEmpty(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "none"), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	assert.False(t, e.HasModule("patrol"))
}

func TestEngine_SyntaxErrorFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bad.lua", "function broken(")
	_, err := NewEngine(dir, zap.NewNop())
	require.Error(t, err)
}

func TestEngine_CallHook(t *testing.T) {
	e := newEngine(t)
	p := actor.NewProxy(ScriptedType, "guard")
	p.SetProperty("start", "gate")

	changes, err := e.CallHook("patrol", HookEnteredWorld, p, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"state": "ready", "origin": "gate"}, changes)

	changes, err = e.CallHook("patrol", HookRemoved, p, 0)
	require.NoError(t, err)
	assert.Nil(t, changes)

	_, err = e.CallHook("missing", HookTick, p, 0)
	require.ErrorIs(t, err, ErrNoModule)
}

func TestEngine_RuntimeErrorIsReturned(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.DoString(`
faulty = {}
function faulty.on_tick(self, dt) error("boom") end
`))
	_, err := e.CallHook("faulty", HookTick, actor.NewProxy(ScriptedType, "x"), 0.1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func newScripted(t *testing.T, lib *actor.Library, module string) *actor.Proxy {
	t.Helper()
	p, err := lib.Create(ScriptedType, module)
	require.NoError(t, err)
	p.SetProperty(PropertyModule, module)
	return p
}

func TestScript_RunsHooksInGameManager(t *testing.T) {
	e := newEngine(t)
	lib := actor.NewLibrary()
	require.NoError(t, RegisterActorType(lib, e))

	g := gm.New(gm.Options{Machine: message.NewMachineInfo("local"), Clock: system.NewClock()})
	p := newScripted(t, lib, "patrol")
	require.NoError(t, g.AddActor(p))

	state, _ := p.Property("state")
	assert.Equal(t, "ready", state)
	origin, _ := p.Property("origin")
	assert.Equal(t, "none", origin)

	g.PreFrame(100*time.Millisecond, 100*time.Millisecond)
	g.PreFrame(100*time.Millisecond, 100*time.Millisecond)

	ticks, _ := p.Property("ticks")
	assert.Equal(t, "2", ticks)
	dt, _ := p.Property("last_dt")
	assert.Equal(t, "0.1", dt[:3])
}

func TestScript_WithoutTickHookDoesNotTick(t *testing.T) {
	e := newEngine(t)
	lib := actor.NewLibrary()
	require.NoError(t, RegisterActorType(lib, e))

	g := gm.New(gm.Options{Machine: message.NewMachineInfo("local"), Clock: system.NewClock()})
	p := newScripted(t, lib, "beacon")
	require.NoError(t, g.AddActor(p))

	lit, _ := p.Property("lit")
	assert.Equal(t, "true", lit)
	s, ok, err := actor.ComponentAs[*Script](p, ComponentType)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, s.IsRegisteredForTicks())
}

// updates counts INFO_ACTOR_UPDATED deliveries.
type updates struct {
	gm.BaseComponent
	n int
}

func (u *updates) ProcessMessage(msg *message.Message) error {
	if msg.Type() == message.InfoActorUpdated {
		u.n++
	}
	return nil
}

func TestScript_PublishedActorSendsUpdates(t *testing.T) {
	e := newEngine(t)
	lib := actor.NewLibrary()
	require.NoError(t, RegisterActorType(lib, e))

	g := gm.New(gm.Options{Machine: message.NewMachineInfo("local"), Clock: system.NewClock()})
	u := &updates{BaseComponent: gm.NewBaseComponent("updates")}
	require.NoError(t, g.AddComponent(u, gm.Lowest))

	p := newScripted(t, lib, "patrol")
	require.NoError(t, g.AddActor(p))
	require.NoError(t, g.PublishActor(p.ID()))

	g.PreFrame(100*time.Millisecond, 100*time.Millisecond) // tick 1 sends an update
	g.PreFrame(100*time.Millisecond, 100*time.Millisecond) // update delivered
	assert.GreaterOrEqual(t, u.n, 1)
}

func TestScript_RemoteActorIsInert(t *testing.T) {
	e := newEngine(t)
	lib := actor.NewLibrary()
	require.NoError(t, RegisterActorType(lib, e))

	g := gm.New(gm.Options{Machine: message.NewMachineInfo("local"), Clock: system.NewClock()})
	p := newScripted(t, lib, "patrol")
	p.SetRemote(true)
	require.NoError(t, g.AddActor(p))
	g.PreFrame(100*time.Millisecond, 100*time.Millisecond)

	_, ok := p.Property("state")
	assert.False(t, ok)
	_, ok = p.Property("ticks")
	assert.False(t, ok)
}
