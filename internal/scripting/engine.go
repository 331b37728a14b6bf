package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
)

var ErrNoModule = errors.New("script module not found")

// Engine wraps a single gopher-lua VM running actor scripts.
// Single-goroutine access only (frame loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory, then from its actors/ subdirectory. Missing directories are
// skipped and an empty path loads nothing.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	e.registerLog()

	if scriptsDir == "" {
		return e, nil
	}
	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "actors")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua in the engine. Used for inline definitions.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// registerLog exposes zap to scripts as log.debug(msg) through log.error(msg).
func (e *Engine) registerLog() {
	t := e.vm.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": e.log.Debug,
		"info":  e.log.Info,
		"warn":  e.log.Warn,
		"error": e.log.Error,
	}
	for name, fn := range levels {
		e.vm.SetField(t, name, e.vm.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	e.vm.SetGlobal("log", t)
}

func (e *Engine) module(name string) (*lua.LTable, bool) {
	t, ok := e.vm.GetGlobal(name).(*lua.LTable)
	return t, ok
}

// HasModule reports whether a global table named name exists.
func (e *Engine) HasModule(name string) bool {
	_, ok := e.module(name)
	return ok
}

// HasHook reports whether module defines the function hook.
func (e *Engine) HasHook(module, hook string) bool {
	t, ok := e.module(module)
	if !ok {
		return false
	}
	_, ok = e.vm.GetField(t, hook).(*lua.LFunction)
	return ok
}

// CallHook calls module.hook(actor, dt). A missing hook is not an error. The
// hook may return a table of property changes; values are converted to
// strings.
func (e *Engine) CallHook(module, hook string, p *actor.Proxy, dt float64) (map[string]string, error) {
	t, ok := e.module(module)
	if !ok {
		return nil, fmt.Errorf("%s: %w", module, ErrNoModule)
	}
	fn, ok := e.vm.GetField(t, hook).(*lua.LFunction)
	if !ok {
		return nil, nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, e.actorTable(p), lua.LNumber(dt)); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", module, hook, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	out, ok := ret.(*lua.LTable)
	if !ok {
		return nil, nil
	}
	changes := make(map[string]string)
	out.ForEach(func(k, v lua.LValue) {
		if key, ok := k.(lua.LString); ok {
			changes[string(key)] = lStr(v)
		}
	})
	return changes, nil
}

// actorTable packs the read-only view of p handed to hooks.
func (e *Engine) actorTable(p *actor.Proxy) *lua.LTable {
	t := e.vm.NewTable()
	typ := p.ActorType()
	t.RawSetString("id", lua.LString(p.ID().String()))
	t.RawSetString("name", lua.LString(p.Name()))
	t.RawSetString("category", lua.LString(typ.Category))
	t.RawSetString("type", lua.LString(typ.Name))
	t.RawSetString("remote", lua.LBool(p.IsRemote()))
	props := e.vm.NewTable()
	for _, name := range p.PropertyNames() {
		v, _ := p.Property(name)
		props.RawSetString(name, lua.LString(v))
	}
	t.RawSetString("properties", props)
	return t
}

// lStr converts a Lua value to its property string form.
func lStr(v lua.LValue) string {
	switch v := v.(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	case lua.LBool:
		if v {
			return "true"
		}
		return "false"
	}
	return v.String()
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
