package gm

import (
	"time"

	"github.com/dtsim/server/internal/message"
)

func (g *GameManager) tickInfo(dtSim, dtReal time.Duration) message.TickInfo {
	return message.TickInfo{
		DeltaSim:       float32(dtSim.Seconds()),
		DeltaReal:      float32(dtReal.Seconds()),
		TimeScale:      float32(g.clock.Scale()),
		SimulationTime: g.clock.SimTime().Seconds(),
	}
}

// PreFrame runs one frame of the simulation: network flush, delivery of last
// frame's messages, one map change step, timers, local then remote ticks,
// actor removal, and finally TICK_END_OF_FRAME to the components.
func (g *GameManager) PreFrame(dtSim, dtReal time.Duration) {
	if g.shutdown {
		return
	}
	g.flushNetwork()

	for _, msg := range g.queue.Swap() {
		g.deliver(msg)
	}

	g.stepMapChange()
	g.fireTimers()

	info := g.tickInfo(dtSim, dtReal)
	g.deliver(g.factory.NewTick(message.TickLocal, info))
	g.deliver(g.factory.NewTick(message.TickRemote, info))

	g.removeDeletedActors()

	g.deliverToComponents(g.factory.NewTick(message.TickEndOfFrame, info))
	g.reportStatistics()
}

// FrameSynch delivers SYSTEM_FRAME_SYNCH immediately.
func (g *GameManager) FrameSynch(dtSim, dtReal time.Duration) {
	if g.shutdown {
		return
	}
	g.deliver(g.factory.NewTick(message.FrameSynch, g.tickInfo(dtSim, dtReal)))
}

// PostFrame delivers SYSTEM_POST_FRAME immediately.
func (g *GameManager) PostFrame() {
	if g.shutdown {
		return
	}
	g.deliver(g.factory.CreateMessage(message.PostFrame))
}
