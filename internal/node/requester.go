package node

import (
	"context"
	"time"
)

// Run drives the node's periodic requester loop: sleep a random
// duration, flip a biased coin, and if it comes up heads run one full
// RequestCS round. Grounded in original_source/TP_01/distributed_node.py's
// request_loop (random.uniform(1,3) sleep, random.random() > 0.5 flip),
// generalized to a context-cancellable loop per spec.md §5's graceful
// shutdown requirement.
func (n *Node) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(n.randomInterval()):
		}

		if !n.coinFlip() {
			continue
		}

		if err := n.RequestCS(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			n.logger.WithError(err).Warn("critical section round failed")
		}
	}
}

func (n *Node) randomInterval() time.Duration {
	lo, hi := n.cfg.RequestIntervalMin, n.cfg.RequestIntervalMax
	if hi <= lo {
		return lo
	}
	n.rngMu.Lock()
	defer n.rngMu.Unlock()
	span := hi - lo
	return lo + time.Duration(n.rng.Int63n(int64(span)))
}

func (n *Node) coinFlip() bool {
	n.rngMu.Lock()
	defer n.rngMu.Unlock()
	return n.rng.Float64() < n.cfg.RequestProbability
}
