package node

import (
	"context"
	"sync"

	"github.com/pdMiranda/CD/internal/lamport"
	"github.com/pdMiranda/CD/internal/membership"
	"github.com/pdMiranda/CD/internal/wire"
)

// fakeTransport routes REQUEST/REPLY directly into the target Node's
// handlers, simulating the network without touching a socket. Peers
// listed in unreachable never get delivered, exercising spec.md §7's
// fail-stop path.
type fakeTransport struct {
	mu          sync.Mutex
	nodes       map[int]*Node
	unreachable map[int]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nodes: make(map[int]*Node), unreachable: make(map[int]bool)}
}

func (f *fakeTransport) register(n *Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[n.id] = n
}

func (f *fakeTransport) setUnreachable(id int, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable[id] = v
}

func (f *fakeTransport) SendRequest(_ context.Context, peer membership.Peer, req wire.Request) wire.SendResult {
	f.mu.Lock()
	if f.unreachable[peer.ID] {
		f.mu.Unlock()
		return wire.SendResult{Peer: peer.ID, Delivered: false, Err: context.DeadlineExceeded}
	}
	target := f.nodes[peer.ID]
	f.mu.Unlock()
	if target == nil {
		return wire.SendResult{Peer: peer.ID, Delivered: false, Err: context.DeadlineExceeded}
	}
	target.HandleRequest(req.Timestamp, req.NodeID)
	return wire.SendResult{Peer: peer.ID, Delivered: true}
}

func (f *fakeTransport) SendReply(_ context.Context, peer membership.Peer, rep wire.Reply) wire.SendResult {
	f.mu.Lock()
	if f.unreachable[peer.ID] {
		f.mu.Unlock()
		return wire.SendResult{Peer: peer.ID, Delivered: false, Err: context.DeadlineExceeded}
	}
	target := f.nodes[peer.ID]
	f.mu.Unlock()
	if target == nil {
		return wire.SendResult{Peer: peer.ID, Delivered: false, Err: context.DeadlineExceeded}
	}
	target.HandleReply(rep.Timestamp, rep.NodeID)
	return wire.SendResult{Peer: peer.ID, Delivered: true}
}

// fakeOrchestratorClient admits one node at a time (rejecting ENTER while
// another node holds the section, or always when rejectAll is set),
// recording concurrent entries so tests can assert mutual exclusion held
// even though the real Orchestrator isn't running.
type fakeOrchestratorClient struct {
	mu        sync.Mutex
	admitted  bool
	maxInside int
	insideNow int
	rejectAll bool
}

func (c *fakeOrchestratorClient) Dial(peer membership.Peer) (OrchestratorSession, error) {
	return &fakeSession{client: c}, nil
}

type fakeSession struct {
	client *fakeOrchestratorClient
}

func (s *fakeSession) Enter(nodeID int, clock lamport.Time) error {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectAll {
		return ErrOrchestratorRejected
	}
	if c.admitted {
		return ErrOrchestratorRejected
	}
	c.admitted = true
	c.insideNow++
	if c.insideNow > c.maxInside {
		c.maxInside = c.insideNow
	}
	return nil
}

func (s *fakeSession) Exit() error {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()
	c.admitted = false
	c.insideNow--
	return nil
}

func (s *fakeSession) Close() error { return nil }
