package system

import (
	"go.uber.org/zap"

	coresys "github.com/dtsim/server/internal/core/system"
)

// Flusher is implemented by components that buffer writes.
type Flusher interface {
	Flush() error
}

// RecorderFlushSystem periodically writes buffered message log entries to
// their store. Phase 5 (Persist).
type RecorderFlushSystem struct {
	target     Flusher
	log        *zap.Logger
	frameCount int
	interval   int // flush every N frames
}

func NewRecorderFlushSystem(target Flusher, intervalFrames int, log *zap.Logger) *RecorderFlushSystem {
	if intervalFrames <= 0 {
		intervalFrames = 1
	}
	return &RecorderFlushSystem{target: target, interval: intervalFrames, log: log}
}

func (s *RecorderFlushSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *RecorderFlushSystem) Update(_ coresys.Delta) {
	s.frameCount++
	if s.frameCount < s.interval {
		return
	}
	s.frameCount = 0
	if err := s.target.Flush(); err != nil {
		s.log.Error("recorder flush failed", zap.Error(err))
	}
}
