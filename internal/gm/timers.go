package gm

import (
	"slices"
	"time"

	"github.com/dtsim/server/internal/message"
)

type timer struct {
	name     string
	about    message.UniqueID
	due      time.Duration
	interval time.Duration
	repeat   bool
	realTime bool
}

func (g *GameManager) now(realTime bool) time.Duration {
	if realTime {
		return g.clock.RealTime()
	}
	return g.clock.SimTime()
}

// SetTimer sends INFO_TIMER_ELAPSED named name, about the given actor (may be
// null), once interval has passed on the simulation clock or, with realTime
// set, the wall clock. A timer with the same name and actor is replaced.
func (g *GameManager) SetTimer(name string, about message.UniqueID, interval time.Duration, repeat, realTime bool) {
	g.ClearTimer(name, about)
	if repeat && interval <= 0 {
		interval = time.Millisecond
	}
	g.timers = append(g.timers, &timer{
		name:     name,
		about:    about,
		due:      g.now(realTime) + interval,
		interval: interval,
		repeat:   repeat,
		realTime: realTime,
	})
}

func (g *GameManager) ClearTimer(name string, about message.UniqueID) {
	g.timers = slices.DeleteFunc(g.timers, func(t *timer) bool {
		return t.name == name && t.about == about
	})
}

func (g *GameManager) clearTimersAbout(id message.UniqueID) {
	g.timers = slices.DeleteFunc(g.timers, func(t *timer) bool { return t.about == id })
}

// TimerCount returns the number of pending timers.
func (g *GameManager) TimerCount() int { return len(g.timers) }

// fireTimers queues INFO_TIMER_ELAPSED for every expired timer, earliest
// first. Repeating timers are rescheduled from their due time.
func (g *GameManager) fireTimers() {
	var expired []*timer
	for _, t := range g.timers {
		if g.now(t.realTime) >= t.due {
			expired = append(expired, t)
		}
	}
	if len(expired) == 0 {
		return
	}
	slices.SortStableFunc(expired, func(a, b *timer) int {
		switch {
		case a.due < b.due:
			return -1
		case a.due > b.due:
			return 1
		}
		return 0
	})
	for _, t := range expired {
		late := g.now(t.realTime) - t.due
		msg := g.factory.CreateMessage(message.InfoTimerElapsed)
		msg.AboutActorID = t.about
		_ = msg.SetStr(message.ParamTimerName, t.name)
		_ = msg.SetFloat(message.ParamLateTime, float32(late.Seconds()))
		g.SendMessage(msg)

		if t.repeat {
			t.due += t.interval
		} else {
			g.timers = slices.DeleteFunc(g.timers, func(x *timer) bool { return x == t })
		}
	}
}
