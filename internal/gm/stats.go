package gm

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// Stats is a snapshot of the counters for the current interval.
type Stats struct {
	Frames   int
	Messages int
	Failures int
}

type statistics struct {
	interval time.Duration
	start    time.Duration
	frames   int
	messages int
	failures int
	perComp  map[string]time.Duration
}

func (s *statistics) reset(now time.Duration) {
	s.start = now
	s.frames = 0
	s.messages = 0
	s.failures = 0
	s.perComp = make(map[string]time.Duration)
}

func (s *statistics) observe(component string, d time.Duration) {
	if s.interval > 0 {
		s.perComp[component] += d
	}
}

func (g *GameManager) Statistics() Stats {
	return Stats{Frames: g.stats.frames, Messages: g.stats.messages, Failures: g.stats.failures}
}

// reportStatistics logs and resets the counters once the interval is over.
func (g *GameManager) reportStatistics() {
	s := &g.stats
	s.frames++
	if s.interval <= 0 {
		return
	}
	now := g.clock.RealTime()
	elapsed := now - s.start
	if elapsed < s.interval {
		return
	}

	names := make([]string, 0, len(s.perComp))
	for n := range s.perComp {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return s.perComp[names[i]] > s.perComp[names[j]] })
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int("frames", s.frames),
		zap.Int("messages", s.messages),
		zap.Int("failures", s.failures),
		zap.Int("actors", len(g.order)),
	}
	for _, n := range names {
		fields = append(fields, zap.Duration("component."+n, s.perComp[n]))
	}
	g.log.Info("game manager statistics", fields...)
	s.reset(now)
}
