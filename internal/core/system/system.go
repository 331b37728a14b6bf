package system

import "time"

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain transport and watcher channels
	PhasePreFrame                // 1: message delivery, map change, ticks, deletions
	PhaseFrame                   // 2: scene traversal
	PhaseFrameSynch              // 3: after traversal, before draw
	PhasePostFrame               // 4: after draw
	PhasePersist                 // 5: flush recorders
)

// Delta is the time step handed to every system for one frame.
type Delta struct {
	Sim  time.Duration // scaled simulation step, zero while paused
	Real time.Duration // wall clock step
}

// System is implemented by everything the Runner drives.
type System interface {
	Phase() Phase
	Update(dt Delta)
}
