package orchestrator

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdMiranda/CD/internal/wire"
)

// Server accepts ENTER..EXIT sessions, one connection per node round.
type Server struct {
	orch              *Orchestrator
	listener          net.Listener
	logger            *logrus.Entry
	inactivityTimeout time.Duration
}

// NewServer wraps an already-open listener around an Orchestrator.
func NewServer(o *Orchestrator, ln net.Listener, logger *logrus.Entry, inactivityTimeout time.Duration) *Server {
	return &Server{orch: o, listener: ln, logger: logger, inactivityTimeout: inactivityTimeout}
}

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.WithError(err).Warn("accept failed")
			continue
		}
		go s.handleSession(ctx, conn)
	}
}

func (s *Server) handleSession(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	line, err := wire.ReadLine(conn, 5*time.Second)
	if err != nil {
		s.logger.WithError(err).Debug("failed to read ENTER")
		return
	}

	enter, err := wire.ParseEnter(line)
	if err != nil {
		s.logger.WithError(err).WithField("line", line).Warn("malformed ENTER")
		return
	}

	admitted := s.orch.Enter(ctx, enter.NodeID, enter.Clock)
	if !admitted {
		if err := wire.WriteLine(conn, wire.SomeoneInCS, 5*time.Second); err != nil {
			s.logger.WithError(err).Warn("failed to write SOMEONE_IS_IN_CS")
		}
		return
	}
	if err := wire.WriteLine(conn, wire.EnterOK, 5*time.Second); err != nil {
		s.logger.WithError(err).Warn("failed to write ENTER_OK")
		s.orch.ForceRelease(ctx, "failed to acknowledge ENTER_OK")
		return
	}

	exitLine, err := wire.ReadLine(conn, s.inactivityTimeout)
	if err != nil {
		s.orch.ForceRelease(ctx, "inactivity timeout or connection error waiting for EXIT")
		return
	}
	if exitLine != wire.Exit {
		s.logger.WithField("line", exitLine).Warn("expected EXIT, got something else")
		s.orch.ForceRelease(ctx, "unexpected message while waiting for EXIT")
		return
	}

	s.orch.Exit(ctx, enter.NodeID)
	if err := wire.WriteLine(conn, wire.ExitOK, 5*time.Second); err != nil {
		s.logger.WithError(err).Warn("failed to write EXIT_OK")
	}
}
