// mapcheck validates every map file in a directory against the built-in
// actor types and the Lua scripts the server would load.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/component"
	"github.com/dtsim/server/internal/maps"
	"github.com/dtsim/server/internal/scripting"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: mapcheck <maps-dir> [scripts-dir] [models-dir]")
		os.Exit(1)
	}
	mapsDir := os.Args[1]
	scriptsDir, modelsDir := "", ""
	if len(os.Args) > 2 {
		scriptsDir = os.Args[2]
	}
	if len(os.Args) > 3 {
		modelsDir = os.Args[3]
	}

	engine, err := scripting.NewEngine(scriptsDir, zap.NewNop())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer engine.Close()

	lib := actor.NewLibrary()
	if err := component.RegisterActorTypes(lib); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := scripting.RegisterActorType(lib, engine); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	project := maps.NewProject(mapsDir, lib, nil, zap.NewNop())
	names, err := project.MapNames()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	problems := 0
	actors := 0
	for _, name := range names {
		m, err := maps.Load(filepath.Join(mapsDir, name+maps.Ext))
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", name, err)
			problems++
			continue
		}
		actors += len(m.Actors)
		errs := maps.Validate(m, lib, modelsDir)
		for _, a := range m.Actors {
			if a.ActorType() != scripting.ScriptedType {
				continue
			}
			mod := a.Properties[scripting.PropertyModule]
			if mod == "" || !engine.HasModule(mod) {
				errs = append(errs, fmt.Errorf("map %s: actor %s: script module %q not loaded", m.Name, a.Name, mod))
			}
		}
		if len(errs) == 0 {
			fmt.Printf("ok   %s (%d actors)\n", name, len(m.Actors))
			continue
		}
		for _, e := range errs {
			fmt.Printf("FAIL %v\n", e)
		}
		problems += len(errs)
	}

	fmt.Fprintf(os.Stderr, "%d maps, %d actors, %d problems\n", len(names), actors, problems)
	if problems > 0 {
		os.Exit(1)
	}
}
