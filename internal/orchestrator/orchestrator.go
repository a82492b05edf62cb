// Package orchestrator implements the centralized safety-net arbiter
// spec.md §4.2 describes: a single admitted node at a time, backed by
// the Printer round it drives. Grounded in
// original_source/TP_01/orquestrador.py's Orquestrador class.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pdMiranda/CD/internal/lamport"
)

// Orchestrator admits one node at a time into the critical section and
// drives the Printer round on its behalf.
type Orchestrator struct {
	printer PrinterClient
	logger  *logrus.Entry

	mu          sync.Mutex
	hasUser     bool
	currentUser int
	roundID     string
	lastPrinted int64
}

// New constructs an Orchestrator around a PrinterClient.
func New(printer PrinterClient, logger *logrus.Entry) *Orchestrator {
	return &Orchestrator{printer: printer, logger: logger}
}

// Enter admits nodeID if no one currently holds the section. It returns
// admitted=false (never an error) when another node is already in,
// matching spec.md §4.2's SOMEONE_IS_IN_CS reply — this is an expected
// outcome, not a failure. The mutex is held only long enough to flip
// current_user (spec.md §5): Enter returns as soon as that happens, so
// server.go can write ENTER_OK back to the Node right away, matching
// orquestrador.py's literal "set current_user, reply ENTER_OK, *then*
// notify the Printer" ordering (spec.md §4.2). The Printer START
// round-trip — which is the Node's whole CS body, per spec.md §4.1.3 —
// runs in a goroutine after Enter returns, serialized against other
// rounds by PrinterClient's own lock rather than by this mutex.
func (o *Orchestrator) Enter(ctx context.Context, nodeID int, clock lamport.Time) (admitted bool) {
	o.mu.Lock()
	if o.hasUser {
		o.logger.WithFields(logrus.Fields{"event": "cs_conflict", "node": nodeID, "current_user": o.currentUser}).
			Warn("node tried to enter while another holds the section")
		o.mu.Unlock()
		return false
	}
	o.hasUser = true
	o.currentUser = nodeID
	o.roundID = uuid.NewString()
	base := o.lastPrinted
	round := o.roundID
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{"event": "enter", "node": nodeID, "round": round}).Info("admitted node")

	go o.notifyPrinter(ctx, nodeID, base, clock, round)
	return true
}

// notifyPrinter starts the Printer round for an admitted node and
// records the new high-water mark once it completes. round guards
// against a stale round's DONE overwriting lastPrinted after a later
// round has already started.
func (o *Orchestrator) notifyPrinter(ctx context.Context, nodeID int, base int64, clock lamport.Time, round string) {
	last, err := o.printer.Start(ctx, nodeID, base, clock)
	if err != nil {
		if errors.Is(err, ErrPrinterBusy) {
			o.logger.WithField("node", nodeID).Error("printer reported a round already active — single-admission invariant violated")
		} else {
			o.logger.WithError(err).WithField("node", nodeID).Error("failed to start printer round")
		}
		return
	}

	o.mu.Lock()
	if o.roundID == round {
		o.lastPrinted = last
	}
	o.mu.Unlock()
}

// Exit releases the section if nodeID currently holds it. It is
// idempotent: releasing twice, or releasing when nodeID never held the
// section, is a no-op (spec.md §8's idempotence property).
func (o *Orchestrator) Exit(ctx context.Context, nodeID int) {
	o.mu.Lock()
	if !o.hasUser || o.currentUser != nodeID {
		o.mu.Unlock()
		return
	}
	o.hasUser = false
	o.currentUser = 0
	o.mu.Unlock()

	o.logger.WithField("node", nodeID).Info("released section")
	if err := o.printer.Stop(ctx); err != nil {
		o.logger.WithError(err).Warn("failed to stop printer round")
	}
}

// ForceRelease unconditionally frees the section, used when a session
// ends abnormally (inactivity timeout or connection error) without a
// proper EXIT — spec.md §4.2's InactivityTimeout / handle_client error
// path in the original.
func (o *Orchestrator) ForceRelease(ctx context.Context, reason string) {
	o.mu.Lock()
	if !o.hasUser {
		o.mu.Unlock()
		return
	}
	node := o.currentUser
	o.hasUser = false
	o.currentUser = 0
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{"node": node, "reason": reason}).Warn("forcing release of abandoned session")
	if err := o.printer.Stop(ctx); err != nil {
		o.logger.WithError(err).Warn("failed to stop printer round during forced release")
	}
}

// CurrentUser reports who, if anyone, currently holds the section.
func (o *Orchestrator) CurrentUser() (nodeID int, held bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentUser, o.hasUser
}

// DefaultInactivityTimeout is how long the Orchestrator waits for EXIT
// after ENTER_OK before force-releasing (spec.md §4.2; grounded in the
// original's conn.settimeout(10)).
const DefaultInactivityTimeout = 10 * time.Second
