package collab

import (
	"time"

	"github.com/workhive/collab/internal/logger"
)

// Sweeper periodically evicts connections that are both stale and dead.
// A connection is evicted only when its socket is no longer open AND its
// last activity is older than the threshold; a healthy socket is never
// evicted on elapsed time alone. Eviction runs the same cleanup as a normal
// disconnect. Transport-level heartbeats are the connection's own concern
// (see internal/server); the sweeper only reaps what the heartbeats could
// not keep alive.
type Sweeper struct {
	hub       *Hub
	router    *Router
	interval  time.Duration
	threshold time.Duration
	stop      chan struct{}
	log       *logger.Logger
}

// NewSweeper creates a sweeper that scans every interval for connections
// idle longer than threshold.
func NewSweeper(hub *Hub, router *Router, interval, threshold time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Global()
	}
	return &Sweeper{
		hub:       hub,
		router:    router,
		interval:  interval,
		threshold: threshold,
		stop:      make(chan struct{}),
		log:       log,
	}
}

// Run blocks, sweeping until Stop is called. Intended for its own goroutine.
func (s *Sweeper) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce()
		case <-s.stop:
			return
		}
	}
}

// Stop terminates Run
func (s *Sweeper) Stop() {
	close(s.stop)
}

// SweepOnce evicts every currently stale dead connection
func (s *Sweeper) SweepOnce() int {
	ids := s.hub.Stale(s.threshold)
	for _, id := range ids {
		s.log.Info("evicting stale connection %s", id)
		s.router.Disconnect(id)
	}
	return len(ids)
}
