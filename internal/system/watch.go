package system

import (
	coresys "github.com/dtsim/server/internal/core/system"
	"github.com/dtsim/server/internal/maps"
)

// MapWatchSystem drops cached map files that changed on disk so the next
// open rereads them. Phase 0 (Input).
type MapWatchSystem struct {
	project *maps.Project
	changes <-chan string
}

func NewMapWatchSystem(project *maps.Project, changes <-chan string) *MapWatchSystem {
	return &MapWatchSystem{project: project, changes: changes}
}

func (s *MapWatchSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *MapWatchSystem) Update(_ coresys.Delta) {
	for {
		select {
		case name := <-s.changes:
			s.project.Invalidate(name)
		default:
			return
		}
	}
}
