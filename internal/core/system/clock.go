package system

import (
	"errors"
	"time"
)

var ErrBadTimeScale = errors.New("time scale must be positive")

// Clock tracks simulation time separately from wall time. Simulation time
// advances by the real step times the scale, and not at all while paused.
type Clock struct {
	simTime  time.Duration
	realTime time.Duration
	scale    float64
	paused   bool
	frame    uint64
}

func NewClock() *Clock {
	return &Clock{scale: 1}
}

// Advance moves the clock forward one frame and returns the step taken.
func (c *Clock) Advance(real time.Duration) Delta {
	c.frame++
	c.realTime += real
	d := Delta{Real: real}
	if !c.paused {
		d.Sim = time.Duration(float64(real) * c.scale)
		c.simTime += d.Sim
	}
	return d
}

func (c *Clock) SimTime() time.Duration  { return c.simTime }
func (c *Clock) RealTime() time.Duration { return c.realTime }
func (c *Clock) Scale() float64          { return c.scale }
func (c *Clock) Paused() bool            { return c.paused }
func (c *Clock) Frame() uint64           { return c.frame }

// SetPaused reports whether the state changed.
func (c *Clock) SetPaused(p bool) bool {
	if c.paused == p {
		return false
	}
	c.paused = p
	return true
}

// SetTime jumps simulation time and changes the scale.
func (c *Clock) SetTime(sim time.Duration, scale float64) error {
	if scale <= 0 {
		return ErrBadTimeScale
	}
	c.simTime = sim
	c.scale = scale
	return nil
}
