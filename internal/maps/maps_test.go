package maps

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/scene"
)

var staticType = actor.Type{Category: "dtsim.static", Name: "Static"}

const townYAML = `
name: town
description: market square
actors:
  - id: gate-1
    name: Gate
    category: dtsim.static
    type: Static
    model: gate.osg
    properties:
      open: "true"
  - name: Fountain
    category: dtsim.static
    type: Static
`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newProject(t *testing.T) (*Project, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "town.yaml", townYAML)
	writeFile(t, dir, "gate.osg", "model")
	writeFile(t, dir, "notes.txt", "not a map")

	lib := actor.NewLibrary()
	require.NoError(t, lib.Register(staticType, nil))
	return NewProject(dir, lib, scene.NewGraph(dir, nil), zap.NewNop()), dir
}

func TestProject_OpenAndClose(t *testing.T) {
	p, _ := newProject(t)

	names, err := p.MapNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"town"}, names)

	proxies, err := p.OpenMap("town")
	require.NoError(t, err)
	require.Len(t, proxies, 2)

	gate := proxies[0]
	assert.Equal(t, message.UniqueID("gate-1"), gate.ID())
	assert.Equal(t, staticType, gate.ActorType())
	v, ok := gate.Property("open")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	require.NotNil(t, gate.Node())
	assert.Equal(t, scene.KindModel, gate.Node().Kind)

	assert.False(t, proxies[1].ID().IsNull(), "actors without an id get one")
	assert.Nil(t, proxies[1].Node())
	assert.True(t, p.IsOpen("town"))

	_, err = p.OpenMap("town")
	assert.True(t, errors.Is(err, ErrMapOpen))

	require.NoError(t, p.CloseMap("town", false))
	assert.False(t, p.IsOpen("town"))
	err = p.CloseMap("town", false)
	assert.True(t, errors.Is(err, ErrMapNotOpen))
}

func TestProject_Errors(t *testing.T) {
	p, dir := newProject(t)

	_, err := p.GetMap("nowhere")
	assert.True(t, errors.Is(err, ErrMapNotFound))

	writeFile(t, dir, "broken.yaml", "actors: [")
	_, err = p.GetMap("broken")
	assert.Error(t, err)

	writeFile(t, dir, "untyped.yaml", "actors:\n  - name: Thing\n")
	_, err = p.GetMap("untyped")
	assert.Error(t, err)

	writeFile(t, dir, "alien.yaml", "actors:\n  - name: X\n    category: other\n    type: Alien\n")
	_, err = p.OpenMap("alien")
	assert.True(t, errors.Is(err, actor.ErrUnknownActorType))
	assert.False(t, p.IsOpen("alien"))

	writeFile(t, dir, "nomodel.yaml", "actors:\n  - name: X\n    category: dtsim.static\n    type: Static\n    model: missing.osg\n")
	_, err = p.OpenMap("nomodel")
	assert.True(t, errors.Is(err, scene.ErrLoadFile))
}

func TestProject_CacheAndInvalidate(t *testing.T) {
	p, dir := newProject(t)

	first, err := p.GetMap("town")
	require.NoError(t, err)
	assert.Equal(t, "market square", first.Description)
	assert.Equal(t, "town", first.Name)

	writeFile(t, dir, "town.yaml", "description: rebuilt\n")
	cached, err := p.GetMap("town")
	require.NoError(t, err)
	assert.Same(t, first, cached)

	p.Invalidate("town")
	fresh, err := p.GetMap("town")
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", fresh.Description)
	assert.Equal(t, "town", fresh.Name, "name defaults to the file name")
}

func TestProject_CloseWithLibrariesDropsCache(t *testing.T) {
	p, _ := newProject(t)
	first, err := p.GetMap("town")
	require.NoError(t, err)
	_, err = p.OpenMap("town")
	require.NoError(t, err)
	require.NoError(t, p.CloseMap("town", true))

	again, err := p.GetMap("town")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}

func TestWatcher_ReportsChangedMaps(t *testing.T) {
	p, dir := newProject(t)
	w, err := p.Watch()
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "harbor.yaml", "actors: []\n")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case name := <-w.Changes():
			if name == "harbor" {
				return
			}
			assert.NotEqual(t, "notes", name)
		case <-deadline:
			t.Fatal("no change reported for harbor.yaml")
		}
	}
}

func TestValidate(t *testing.T) {
	_, dir := newProject(t)
	m, err := Load(filepath.Join(dir, "town.yaml"))
	require.NoError(t, err)

	lib := actor.NewLibrary()
	require.NoError(t, lib.Register(staticType, nil))
	assert.Empty(t, Validate(m, lib, dir))

	m.Actors = append(m.Actors, ActorDef{Name: "Ghost", Category: "dtsim.static", Type: "Missing", Model: "ghost.osg"})
	errs := Validate(m, lib, dir)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrUnknownType)
	assert.ErrorIs(t, errs[1], os.ErrNotExist)

	// Without a model dir only types are checked.
	assert.Len(t, Validate(m, lib, ""), 1)
}
