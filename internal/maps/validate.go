package maps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dtsim/server/internal/actor"
)

var ErrUnknownType = errors.New("actor type not registered")

// Validate checks m against the types registered in lib. When modelDir is
// set, model files must exist under it.
func Validate(m *Map, lib *actor.Library, modelDir string) []error {
	var errs []error
	for i, a := range m.Actors {
		label := a.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if !lib.Has(a.ActorType()) {
			errs = append(errs, fmt.Errorf("map %s: actor %s: %s: %w", m.Name, label, a.ActorType(), ErrUnknownType))
		}
		if a.Model == "" || modelDir == "" {
			continue
		}
		path := a.Model
		if !filepath.IsAbs(path) {
			path = filepath.Join(modelDir, path)
		}
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("map %s: actor %s: model: %w", m.Name, label, err))
		}
	}
	return errs
}
