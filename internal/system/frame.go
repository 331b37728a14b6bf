package system

import (
	coresys "github.com/dtsim/server/internal/core/system"
	"github.com/dtsim/server/internal/gm"
)

// PreFrameSystem runs the game manager's pre-frame: queued delivery, map
// change, timers, ticks and actor removal. Phase 1 (PreFrame).
type PreFrameSystem struct {
	gm *gm.GameManager
}

func NewPreFrameSystem(g *gm.GameManager) *PreFrameSystem {
	return &PreFrameSystem{gm: g}
}

func (s *PreFrameSystem) Phase() coresys.Phase { return coresys.PhasePreFrame }

func (s *PreFrameSystem) Update(dt coresys.Delta) {
	s.gm.PreFrame(dt.Sim, dt.Real)
}

// FrameSynchSystem delivers SYSTEM_FRAME_SYNCH. Phase 3 (FrameSynch).
type FrameSynchSystem struct {
	gm *gm.GameManager
}

func NewFrameSynchSystem(g *gm.GameManager) *FrameSynchSystem {
	return &FrameSynchSystem{gm: g}
}

func (s *FrameSynchSystem) Phase() coresys.Phase { return coresys.PhaseFrameSynch }

func (s *FrameSynchSystem) Update(dt coresys.Delta) {
	s.gm.FrameSynch(dt.Sim, dt.Real)
}

// PostFrameSystem delivers SYSTEM_POST_FRAME. Phase 4 (PostFrame).
type PostFrameSystem struct {
	gm *gm.GameManager
}

func NewPostFrameSystem(g *gm.GameManager) *PostFrameSystem {
	return &PostFrameSystem{gm: g}
}

func (s *PostFrameSystem) Phase() coresys.Phase { return coresys.PhasePostFrame }

func (s *PostFrameSystem) Update(_ coresys.Delta) {
	s.gm.PostFrame()
}
