// Package printer implements the append-only numeric sequence service
// spec.md §4.3 describes: one admitted round prints a random k ∈ [1,10]
// consecutive integers above a supplied base, 0.5s apart, and reports
// the last value printed. Grounded in
// original_source/TP_01/print_server.py's NumberPrinter.
package printer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config bundles the Printer's tunables.
type Config struct {
	MinK int
	MaxK int
	Tick time.Duration
}

// DefaultConfig matches original_source/TP_01/print_server.py: k in
// [1,10], 0.5s between numbers.
func DefaultConfig() Config {
	return Config{MinK: 1, MaxK: 10, Tick: 500 * time.Millisecond}
}

// Printer is the single shared append-only sequence generator. Only one
// round may be active at a time (spec.md §4.3's PrinterBusy invariant).
type Printer struct {
	cfg    Config
	logger *logrus.Entry

	mu          sync.Mutex
	active      bool
	currentNode int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs a Printer.
func New(logger *logrus.Entry, cfg Config) *Printer {
	return &Printer{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Busy reports whether a round is currently active.
func (p *Printer) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Run executes one full round for nodeID starting just above base:
// it prints base+1 .. base+k, one every Tick, and returns the last
// value printed. If a round is already active it returns busy=true
// without printing anything, letting the caller reply PRINTER_BUSY
// (spec.md §7's PrinterBusy). Run blocks its caller for the full duration of the
// round by design: the Orchestrator holds one connection open across
// the whole START..DONE exchange (spec.md §4.4).
func (p *Printer) Run(ctx context.Context, nodeID int, base int64) (last int64, busy bool) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		p.logger.WithField("node", nodeID).Warn("printer already active, rejecting round")
		return 0, true
	}
	p.active = true
	p.currentNode = nodeID
	p.mu.Unlock()

	k := p.randomK()
	p.logger.WithFields(logrus.Fields{"event": "round_start", "node": nodeID, "base": base, "k": k}).Info("starting print round")

	last = base
	for i := 1; i <= k; i++ {
		p.mu.Lock()
		stillActive := p.active
		p.mu.Unlock()
		if !stillActive {
			p.logger.WithField("node", nodeID).Info("round stopped early")
			break
		}

		last = base + int64(i)
		p.logger.WithFields(logrus.Fields{"event": "print", "node": nodeID, "value": last}).Info("printed number")

		select {
		case <-time.After(p.cfg.Tick):
		case <-ctx.Done():
			p.finish(nodeID)
			return last, false
		}
	}

	p.finish(nodeID)
	p.logger.WithFields(logrus.Fields{"event": "round_done", "node": nodeID, "last": last}).Info("finished print round")
	return last, false
}

func (p *Printer) finish(nodeID int) {
	p.mu.Lock()
	p.active = false
	p.currentNode = 0
	p.mu.Unlock()
}

// Stop ends the active round early, if any (spec.md §4.4's STOP
// message). It is a no-op when no round is active.
func (p *Printer) Stop() {
	p.mu.Lock()
	wasActive := p.active
	node := p.currentNode
	p.active = false
	p.mu.Unlock()
	if wasActive {
		p.logger.WithField("node", node).Info("round stopped by STOP")
	}
}

func (p *Printer) randomK() int {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	span := p.cfg.MaxK - p.cfg.MinK + 1
	return p.cfg.MinK + p.rng.Intn(span)
}
