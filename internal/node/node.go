// Package node implements the Ricart–Agrawala mutual-exclusion state
// machine described in spec.md §3-4.1: a Lamport clock, a requesting
// flag, an awaiting set, a deferred set, and the decision rules that
// drive a node from idle through the critical section and back.
package node

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdMiranda/CD/internal/lamport"
	"github.com/pdMiranda/CD/internal/membership"
	"github.com/pdMiranda/CD/internal/wire"
)

// State names the five phases of spec.md §4.1.5's state machine.
type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateEntering
	StateInCS
	StateReleasing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StateEntering:
		return "entering"
	case StateInCS:
		return "in_cs"
	case StateReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// ErrAlreadyRequesting is returned by RequestCS when a round is already
// in flight.
var ErrAlreadyRequesting = errors.New("node: already requesting critical section")

// Config bundles the timeouts and intervals spec.md §5 specifies.
type Config struct {
	// PeerTimeout bounds REQUEST/REPLY sends (spec.md §5: 1-3s).
	PeerTimeout time.Duration
	// OrchestratorDialTimeout bounds connecting/ENTER (spec.md §5: ~3s).
	OrchestratorDialTimeout time.Duration
	// OrchestratorExitTimeout bounds EXIT/EXIT_OK.
	OrchestratorExitTimeout time.Duration
	// CSDwell is the fixed dwell inside the critical section after
	// ENTER_OK (spec.md §4.1.3; grounded in original_source's
	// CS_DURATION = 5s).
	CSDwell time.Duration
	// WatchdogMargin is added to CSDwell for the forced-exit watchdog
	// (spec.md §4.1.3: "expected CS budget plus a small margin").
	WatchdogMargin time.Duration
	// RequestIntervalMin/Max bound the periodic requester's sleep
	// between rounds (spec.md §5: 1-3s).
	RequestIntervalMin time.Duration
	RequestIntervalMax time.Duration
	// RequestProbability is the Bernoulli coin-flip chance that a
	// given tick issues a RequestCS (spec.md §4.1's "triggered
	// periodically by a Bernoulli coin flip").
	RequestProbability float64
}

// DefaultConfig returns the timeouts spec.md §5 calls for.
func DefaultConfig() Config {
	return Config{
		PeerTimeout:             2 * time.Second,
		OrchestratorDialTimeout: 3 * time.Second,
		OrchestratorExitTimeout: 10 * time.Second,
		CSDwell:                 5 * time.Second,
		WatchdogMargin:          2 * time.Second,
		RequestIntervalMin:      1 * time.Second,
		RequestIntervalMax:      3 * time.Second,
		RequestProbability:      0.5,
	}
}

// Node is a single cluster member running the Ricart–Agrawala protocol.
type Node struct {
	id                 int
	table              membership.Table
	clock              *lamport.Clock
	transport          Transport
	orchestratorClient OrchestratorClient
	logger             *logrus.Entry
	cfg                Config

	mu              sync.Mutex
	state           State
	requesting      bool
	myRequestTS     lamport.Time
	awaiting        map[int]struct{}
	deferred        []int
	inCS            bool
	csStartedAt     time.Time
	session         OrchestratorSession
	round           int64
	pendingRequests []Priority

	csGranted chan struct{}

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs a Node for the given identity and membership table.
func New(id int, table membership.Table, transport Transport, orch OrchestratorClient, logger *logrus.Entry, cfg Config) *Node {
	return &Node{
		id:                 id,
		table:              table,
		clock:              lamport.New(),
		transport:          transport,
		orchestratorClient: orch,
		logger:             logger,
		cfg:                cfg,
		state:              StateIdle,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
	}
}

// ID returns the node's identity.
func (n *Node) ID() int { return n.id }

// Clock exposes the node's Lamport clock (read-only use expected).
func (n *Node) Clock() *lamport.Clock { return n.clock }

// Snapshot is a point-in-time, lock-protected view of node state for
// tests and the status HTTP surface.
type Snapshot struct {
	ID              int
	Clock           lamport.Time
	State           string
	Requesting      bool
	MyRequestTS     lamport.Time
	Awaiting        []int
	Deferred        []int
	InCS            bool
	PendingRequests []Priority
}

// Snapshot returns a copy of the node's current state.
func (n *Node) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := Snapshot{
		ID:          n.id,
		Clock:       n.clock.Now(),
		State:       n.state.String(),
		Requesting:  n.requesting,
		MyRequestTS: n.myRequestTS,
		InCS:        n.inCS,
	}
	for id := range n.awaiting {
		s.Awaiting = append(s.Awaiting, id)
	}
	sort.Ints(s.Awaiting)
	s.Deferred = append(s.Deferred, n.deferred...)
	s.PendingRequests = append(s.PendingRequests, n.pendingRequests...)
	return s
}

// RequestCS runs one full critical-section round: REQUEST fan-out, wait
// for every REPLY (or implicit grant from an unreachable peer), ENTER
// with the Orchestrator, dwell, EXIT, and finally drain any deferred
// REPLYs. It returns once the round is fully resolved — entered and
// exited the CS, or abandoned after an Orchestrator rejection/timeout.
func (n *Node) RequestCS(ctx context.Context) error {
	n.mu.Lock()
	if n.requesting {
		n.mu.Unlock()
		return ErrAlreadyRequesting
	}
	ts := n.clock.Tick()
	n.round++
	round := n.round
	n.requesting = true
	n.myRequestTS = ts
	n.state = StateAwaiting
	n.awaiting = make(map[int]struct{}, len(n.table.Peers))
	for _, p := range n.table.Peers {
		n.awaiting[p.ID] = struct{}{}
	}
	n.csGranted = make(chan struct{}, 1)
	n.insertPendingLocked(Priority{Timestamp: ts, NodeID: n.id})
	peers := append([]membership.Peer(nil), n.table.Peers...)
	n.mu.Unlock()

	n.logger.WithFields(logrus.Fields{"event": "request_cs", "ts": ts, "peers": len(peers)}).Info("requesting critical section")

	n.checkAwaitingEmptyLocked()

	for _, p := range peers {
		go n.dispatchRequest(ctx, p, ts)
	}

	select {
	case <-n.csGranted:
	case <-ctx.Done():
		return ctx.Err()
	}

	return n.enterAndRun(ctx, round)
}

func (n *Node) dispatchRequest(ctx context.Context, peer membership.Peer, ts lamport.Time) {
	res := n.transport.SendRequest(ctx, peer, wire.Request{Timestamp: ts, NodeID: n.id})
	if !res.Delivered {
		n.logger.WithFields(logrus.Fields{"event": "request_unreachable", "peer": peer.ID, "err": res.Err}).
			Warn("REQUEST delivery failed, treating peer as having replied (fail-stop)")
		n.markUnreachable(peer.ID)
		return
	}
	n.logger.WithFields(logrus.Fields{"event": "request_sent", "peer": peer.ID, "ts": ts}).Debug("sent REQUEST")
}

// markUnreachable removes peer from awaiting without a clock witness,
// since no message actually arrived — spec.md §7's TransientSendFailure
// policy.
func (n *Node) markUnreachable(peerID int) {
	n.mu.Lock()
	delete(n.awaiting, peerID)
	n.mu.Unlock()
	n.checkAwaitingEmptyLocked()
}

// checkAwaitingEmptyLocked transitions Awaiting->Entering and wakes
// RequestCS once every REPLY (real or implicit) has arrived.
func (n *Node) checkAwaitingEmptyLocked() {
	n.mu.Lock()
	ready := n.requesting && n.state == StateAwaiting && len(n.awaiting) == 0
	if ready {
		n.state = StateEntering
	}
	n.mu.Unlock()
	if ready {
		select {
		case n.csGranted <- struct{}{}:
		default:
		}
	}
}

// HandleReply processes an incoming REPLY from a peer (spec.md §4.1.1).
// Duplicate REPLYs for a peer already removed from awaiting are silently
// ignored, satisfying the idempotence property in spec.md §8.
func (n *Node) HandleReply(ts lamport.Time, from int) {
	n.clock.Witness(ts)
	n.mu.Lock()
	_, waiting := n.awaiting[from]
	if waiting {
		delete(n.awaiting, from)
	}
	n.mu.Unlock()
	n.logger.WithFields(logrus.Fields{"event": "reply_received", "from": from, "ts": ts, "was_awaited": waiting}).Info("received REPLY")
	n.checkAwaitingEmptyLocked()
}

// HandleRequest processes an incoming REQUEST from a peer (spec.md
// §4.1.1). It replies immediately unless this node is requesting with
// strictly higher priority, in which case the REPLY is deferred until
// this node's own CS exit.
func (n *Node) HandleRequest(ts lamport.Time, from int) {
	n.clock.Witness(ts)

	n.mu.Lock()
	theirPrio := Priority{Timestamp: ts, NodeID: from}
	myPrio := Priority{Timestamp: n.myRequestTS, NodeID: n.id}
	requesting := n.requesting
	shouldReplyNow := !requesting || theirPrio.Less(myPrio)
	if !shouldReplyNow {
		n.deferred = append(n.deferred, from)
	}
	n.insertPendingLocked(theirPrio)
	n.mu.Unlock()

	if shouldReplyNow {
		n.logger.WithFields(logrus.Fields{"event": "request_granted", "from": from, "ts": ts}).Info("granting REQUEST immediately")
		n.sendReply(from)
	} else {
		n.logger.WithFields(logrus.Fields{"event": "request_deferred", "from": from, "ts": ts}).Info("deferring REPLY")
	}
}

func (n *Node) sendReply(to int) {
	peer, ok := n.table.Lookup(to)
	if !ok {
		n.logger.WithField("peer", to).Error("cannot reply: unknown peer id")
		return
	}
	ts := n.clock.Tick()
	res := n.transport.SendReply(context.Background(), peer, wire.Reply{Timestamp: ts, NodeID: n.id})
	if !res.Delivered {
		n.logger.WithFields(logrus.Fields{"event": "reply_send_failed", "peer": to, "err": res.Err}).Warn("failed to send REPLY")
	}
}

// enterAndRun contacts the Orchestrator, dwells in the CS, then exits.
func (n *Node) enterAndRun(ctx context.Context, round int64) error {
	session, err := n.orchestratorClient.Dial(n.table.Orchestrator)
	if err != nil {
		n.logger.WithError(err).Error("failed to reach orchestrator")
		n.releaseWithoutCS()
		return fmt.Errorf("dial orchestrator: %w", err)
	}

	n.mu.Lock()
	n.session = session
	myID, myTS := n.id, n.myRequestTS
	n.mu.Unlock()

	if err := session.Enter(myID, myTS); err != nil {
		session.Close()
		n.mu.Lock()
		n.session = nil
		n.mu.Unlock()
		if errors.Is(err, ErrOrchestratorRejected) {
			n.logger.WithError(err).Error("orchestrator rejected ENTER")
		} else {
			n.logger.WithError(err).Error("ENTER failed")
		}
		n.releaseWithoutCS()
		return err
	}

	n.mu.Lock()
	n.state = StateInCS
	n.inCS = true
	n.csStartedAt = time.Now()
	n.mu.Unlock()
	n.logger.WithField("event", "enter_cs").Info("entered critical section")

	n.startWatchdog(round)

	select {
	case <-time.After(n.cfg.CSDwell):
	case <-ctx.Done():
	}

	return n.ExitCS()
}

// ExitCS leaves the critical section: sends EXIT, waits for EXIT_OK,
// resets per-round state, and drains deferred REPLYs. It is idempotent:
// a second call (e.g. from a racing watchdog) after state has already
// been reset is a no-op, satisfying spec.md §8's idempotence property.
func (n *Node) ExitCS() error {
	n.mu.Lock()
	session := n.session
	wasInCS := n.inCS
	n.session = nil
	n.mu.Unlock()

	if !wasInCS && session == nil {
		return nil
	}

	var exitErr error
	if session != nil {
		if err := session.Exit(); err != nil {
			exitErr = err
			n.logger.WithError(err).Error("EXIT failed")
		}
		session.Close()
	}

	n.releaseWithoutCS()
	if wasInCS {
		n.logger.WithField("event", "exit_cs").WithField("duration", time.Since(n.csStartedAt)).Info("exited critical section")
	}
	return exitErr
}

// releaseWithoutCS resets requesting/awaiting/deferred/in_cs to idle and
// answers every deferred peer, whether or not the CS was ever entered
// (covers both normal exit and Orchestrator-rejection abandonment).
func (n *Node) releaseWithoutCS() {
	n.mu.Lock()
	if n.state == StateIdle && !n.requesting && !n.inCS {
		n.mu.Unlock()
		return
	}
	n.state = StateReleasing
	n.inCS = false
	n.requesting = false
	n.awaiting = nil
	drained := n.deferred
	n.deferred = nil
	n.removeSelfFromPendingLocked()
	n.mu.Unlock()

	if len(drained) > 0 {
		n.logger.WithFields(logrus.Fields{"event": "release_deferred", "count": len(drained)}).Info("releasing critical section, answering deferred peers")
	}
	for _, id := range drained {
		n.sendReply(id)
	}

	n.mu.Lock()
	n.state = StateIdle
	n.mu.Unlock()
}

func (n *Node) insertPendingLocked(p Priority) {
	n.pendingRequests = append(n.pendingRequests, p)
	sort.Slice(n.pendingRequests, func(i, j int) bool {
		return n.pendingRequests[i].Less(n.pendingRequests[j])
	})
}

func (n *Node) removeSelfFromPendingLocked() {
	kept := n.pendingRequests[:0]
	for _, p := range n.pendingRequests {
		if p.NodeID != n.id {
			kept = append(kept, p)
		}
	}
	n.pendingRequests = kept
}
