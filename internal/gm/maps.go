package gm

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/mapchange"
	"github.com/dtsim/server/internal/message"
)

// CurrentMapSet returns the names of the maps currently open.
func (g *GameManager) CurrentMapSet() []string { return slices.Clone(g.loadedMaps) }

// MapChangeState reports the state of the map change machine.
func (g *GameManager) MapChangeState() mapchange.State {
	if g.mapChange == nil {
		return mapchange.Idle
	}
	return g.mapChange.State()
}

func (g *GameManager) ChangeMap(name string, addBillboards bool) error {
	return g.ChangeMapSet([]string{name}, addBillboards)
}

// ChangeMapSet closes the current maps and opens names over the following
// frames.
func (g *GameManager) ChangeMapSet(names []string, addBillboards bool) error {
	if len(names) == 0 {
		return g.mapError("change map set", ErrNoMaps)
	}
	if slices.Contains(names, "") {
		return g.mapError("change map set", ErrInvalidMapName)
	}
	if g.mapChange == nil {
		return g.mapError("change map set", ErrNoLoader)
	}
	if err := g.mapChange.BeginMapChange(g.loadedMaps, names, addBillboards); err != nil {
		return g.mapError("change map set", err)
	}
	return nil
}

// CloseCurrentMap closes every open map without opening new ones.
func (g *GameManager) CloseCurrentMap() error {
	if g.mapChange == nil {
		return g.mapError("close current map", ErrNoLoader)
	}
	if err := g.mapChange.BeginMapChange(g.loadedMaps, nil, false); err != nil {
		return g.mapError("close current map", err)
	}
	return nil
}

func (g *GameManager) mapError(op string, err error) error {
	g.log.Error("map request rejected", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// OpenAdditionalMapSet opens maps on top of the current set at once. Maps
// already open are skipped, maps that fail are logged and skipped.
func (g *GameManager) OpenAdditionalMapSet(names []string) error {
	if g.mapChange == nil {
		return g.mapError("open additional maps", ErrNoLoader)
	}
	var opened []string
	for _, name := range names {
		if slices.Contains(g.loadedMaps, name) {
			continue
		}
		if err := g.mapChange.LoadSingleMap(name); err != nil {
			g.log.Error("additional map failed", zap.String("map", name), zap.Error(err))
			continue
		}
		g.loadedMaps = append(g.loadedMaps, name)
		opened = append(opened, name)
	}
	if len(opened) > 0 {
		g.SendMessage(g.factory.NewMapMessage(message.InfoMapsOpened, opened))
	}
	return nil
}

// CloseAdditionalMapSet closes the given open maps at once and deletes
// their actors.
func (g *GameManager) CloseAdditionalMapSet(names []string) error {
	if g.mapChange == nil {
		return g.mapError("close additional maps", ErrNoLoader)
	}
	var closed []string
	for _, name := range names {
		i := slices.Index(g.loadedMaps, name)
		if i < 0 {
			continue
		}
		g.mapChange.CloseSingleMap(name, false)
		g.loadedMaps = slices.Delete(g.loadedMaps, i, i+1)
		closed = append(closed, name)
	}
	if len(closed) > 0 {
		g.SendMessage(g.factory.NewMapMessage(message.InfoMapsClosed, closed))
	}
	return nil
}

// stepMapChange advances an in-flight change by one map. A failure aborts
// the change; the maps opened before it stay open.
func (g *GameManager) stepMapChange() {
	if g.mapChange == nil || g.mapChange.State() == mapchange.Idle {
		return
	}
	if err := g.mapChange.ContinueMapChange(); err != nil {
		g.log.Error("map change aborted", zap.Error(err))
		g.loadedMaps = g.mapChange.Abort()
		return
	}
	if g.mapChange.State() == mapchange.Idle {
		g.loadedMaps = g.mapChange.NewMapNames()
	}
}
