package node

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pdMiranda/CD/internal/lamport"
	"github.com/pdMiranda/CD/internal/membership"
	"github.com/pdMiranda/CD/internal/wire"
)

// ErrOrchestratorRejected is returned when the Orchestrator answers ENTER
// with anything other than ENTER_OK — spec.md §7's OrchestratorRejection.
var ErrOrchestratorRejected = errors.New("orchestrator rejected ENTER")

// OrchestratorSession is one ENTER..EXIT conversation with the
// Orchestrator, carried on a single connection per spec.md §4.4.
type OrchestratorSession interface {
	// Enter sends ENTER and returns nil if the Orchestrator replied
	// ENTER_OK, or ErrOrchestratorRejected (wrapping the raw reply)
	// otherwise.
	Enter(nodeID int, clock lamport.Time) error
	// Exit sends EXIT and waits for EXIT_OK.
	Exit() error
	// Close releases the underlying connection.
	Close() error
}

// OrchestratorClient dials the Orchestrator to start a new session.
type OrchestratorClient interface {
	Dial(peer membership.Peer) (OrchestratorSession, error)
}

// TCPOrchestratorClient is the real OrchestratorClient.
type TCPOrchestratorClient struct {
	DialTimeout time.Duration
	ExitTimeout time.Duration
}

func NewTCPOrchestratorClient(dialTimeout, exitTimeout time.Duration) *TCPOrchestratorClient {
	return &TCPOrchestratorClient{DialTimeout: dialTimeout, ExitTimeout: exitTimeout}
}

func (c *TCPOrchestratorClient) Dial(peer membership.Peer) (OrchestratorSession, error) {
	conn, err := net.DialTimeout("tcp", peer.Addr(), c.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial orchestrator %s: %w", peer.Addr(), err)
	}
	return &tcpSession{conn: conn, enterTimeout: c.DialTimeout, timeout: c.ExitTimeout}, nil
}

type tcpSession struct {
	conn         net.Conn
	enterTimeout time.Duration
	timeout      time.Duration
}

func (s *tcpSession) Enter(nodeID int, clock lamport.Time) error {
	if err := wire.WriteLine(s.conn, wire.FormatEnter(wire.Enter{NodeID: nodeID, Clock: clock}), s.enterTimeout); err != nil {
		return fmt.Errorf("send ENTER: %w", err)
	}
	reply, err := wire.ReadLine(s.conn, s.enterTimeout)
	if err != nil {
		return fmt.Errorf("read ENTER reply: %w", err)
	}
	if reply != wire.EnterOK {
		return fmt.Errorf("%w: %s", ErrOrchestratorRejected, reply)
	}
	return nil
}

func (s *tcpSession) Exit() error {
	if err := wire.WriteLine(s.conn, wire.Exit, s.timeout); err != nil {
		return fmt.Errorf("send EXIT: %w", err)
	}
	reply, err := wire.ReadLine(s.conn, s.timeout)
	if err != nil {
		return fmt.Errorf("read EXIT reply: %w", err)
	}
	if reply != wire.ExitOK {
		return fmt.Errorf("unexpected EXIT reply: %s", reply)
	}
	return nil
}

func (s *tcpSession) Close() error {
	return s.conn.Close()
}
