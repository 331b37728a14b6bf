package gm

import (
	"time"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/message"
)

func (g *GameManager) IsPaused() bool { return g.clock.Paused() }

// SetPaused stops or restarts simulation time and announces the change with
// INFO_PAUSED or INFO_RESUMED.
func (g *GameManager) SetPaused(paused bool) {
	if !g.clock.SetPaused(paused) {
		return
	}
	t := message.InfoResumed
	if paused {
		t = message.InfoPaused
	}
	g.log.Info("simulation pause changed", zap.Bool("paused", paused))
	g.SendMessage(g.factory.CreateMessage(t))
}

// ChangeTimeSettings jumps simulation time and sets the time scale, then
// sends INFO_TIME_CHANGED.
func (g *GameManager) ChangeTimeSettings(simTime time.Duration, scale float64) error {
	if err := g.clock.SetTime(simTime, scale); err != nil {
		return err
	}
	msg := g.factory.CreateMessage(message.InfoTimeChanged)
	_ = msg.SetFloat(message.ParamTimeScale, float32(scale))
	_ = msg.SetDouble(message.ParamSimTime, simTime.Seconds())
	g.SendMessage(msg)
	return nil
}
