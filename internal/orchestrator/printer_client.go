package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pdMiranda/CD/internal/lamport"
	"github.com/pdMiranda/CD/internal/membership"
	"github.com/pdMiranda/CD/internal/wire"
)

// ErrPrinterBusy is returned when the Printer answers START with
// PRINTER_BUSY, meaning it already has an active round — a state the
// single-admission Orchestrator should never observe, per spec.md §7's
// PrinterBusy policy ("Orchestrator must treat this as a bug signal").
var ErrPrinterBusy = errors.New("printer: round already active")

// PrinterClient is the Orchestrator's single conversation with the
// Printer service. Grounded in
// original_source/TP_01/orquestrador.py's notify_numbers_service, which
// serializes every Printer call behind one dedicated lock
// (numbers_socket_lock) so START and STOP from different rounds never
// interleave on the wire.
type PrinterClient interface {
	Start(ctx context.Context, nodeID int, base int64, clock lamport.Time) (last int64, err error)
	Stop(ctx context.Context) error
}

// TCPPrinterClient dials the Printer fresh for every call, matching
// spec.md §4.4's one-connection-per-exchange wire protocol.
type TCPPrinterClient struct {
	peer         membership.Peer
	dialTimeout  time.Duration
	startTimeout time.Duration

	mu sync.Mutex
}

// NewTCPPrinterClient builds a TCPPrinterClient.
func NewTCPPrinterClient(peer membership.Peer, dialTimeout, startTimeout time.Duration) *TCPPrinterClient {
	return &TCPPrinterClient{peer: peer, dialTimeout: dialTimeout, startTimeout: startTimeout}
}

func (c *TCPPrinterClient) Start(_ context.Context, nodeID int, base int64, clock lamport.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := net.DialTimeout("tcp", c.peer.Addr(), c.dialTimeout)
	if err != nil {
		return base, fmt.Errorf("dial printer: %w", err)
	}
	defer conn.Close()

	if err := wire.WriteLine(conn, wire.FormatStart(wire.Start{NodeID: nodeID, Base: base, Clock: clock}), c.dialTimeout); err != nil {
		return base, fmt.Errorf("send START: %w", err)
	}

	line, err := wire.ReadLine(conn, c.startTimeout)
	if err != nil {
		return base, fmt.Errorf("read DONE: %w", err)
	}
	if line == wire.PrinterBusy {
		return base, ErrPrinterBusy
	}
	done, err := wire.ParseDone(line)
	if err != nil {
		return base, fmt.Errorf("parse DONE: %w", err)
	}
	return done.Last, nil
}

func (c *TCPPrinterClient) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := net.DialTimeout("tcp", c.peer.Addr(), c.dialTimeout)
	if err != nil {
		return fmt.Errorf("dial printer: %w", err)
	}
	defer conn.Close()

	if err := wire.WriteLine(conn, wire.Stop, c.dialTimeout); err != nil {
		return fmt.Errorf("send STOP: %w", err)
	}
	if _, err := wire.ReadLine(conn, c.dialTimeout); err != nil {
		return fmt.Errorf("read STOPPED: %w", err)
	}
	return nil
}
