package system

import (
	"sort"
	"time"
)

// Runner executes systems in phase order each frame. Systems sharing a phase
// keep their registration order.
type Runner struct {
	clock   *Clock
	systems []System
	sorted  bool
}

func NewRunner(clock *Clock) *Runner {
	if clock == nil {
		clock = NewClock()
	}
	return &Runner{
		clock:   clock,
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Clock() *Clock { return r.clock }

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick advances the clock by real and runs every system once.
func (r *Runner) Tick(real time.Duration) Delta {
	r.ensureSorted()
	dt := r.clock.Advance(real)
	for _, s := range r.systems {
		s.Update(dt)
	}
	return dt
}

// TickPhase runs only the systems of one phase without advancing the clock.
// The frame loop uses it to poll input between frames.
func (r *Runner) TickPhase(phase Phase, dt Delta) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
