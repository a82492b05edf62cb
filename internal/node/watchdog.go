package node

import (
	"time"

	"github.com/sirupsen/logrus"
)

// startWatchdog arms a timer for CSDwell+WatchdogMargin that force-exits
// the critical section if the normal ExitCS call never happens — e.g.
// the Orchestrator accepted EXIT but the reply never arrived, or some
// other network stall. round pins the watchdog to the round it was
// armed for, so a stale timer from an earlier round can never force-exit
// a later one (spec.md §4.1.3's "expected CS budget plus a small
// margin").
func (n *Node) startWatchdog(round int64) {
	delay := n.cfg.CSDwell + n.cfg.WatchdogMargin
	time.AfterFunc(delay, func() {
		n.mu.Lock()
		stale := n.round != round
		stillInCS := n.inCS
		n.mu.Unlock()
		if stale || !stillInCS {
			return
		}
		n.logger.WithFields(logrus.Fields{"event": "watchdog_fired", "round": round, "delay": delay}).
			Error("critical section exceeded budget, forcing exit")
		if err := n.ExitCS(); err != nil {
			n.logger.WithError(err).Error("watchdog-forced ExitCS failed")
		}
	})
}
