package printer

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdMiranda/CD/internal/wire"
)

// Server accepts START and STOP connections and drives a Printer.
type Server struct {
	printer  *Printer
	listener net.Listener
	logger   *logrus.Entry
}

// NewServer wraps an already-open listener around a Printer.
func NewServer(p *Printer, ln net.Listener, logger *logrus.Entry) *Server {
	return &Server{printer: p, listener: ln, logger: logger}
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
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	line, err := wire.ReadLine(conn, 5*time.Second)
	if err != nil {
		s.logger.WithError(err).Debug("failed to read inbound message")
		return
	}

	switch {
	case line == wire.Stop:
		s.printer.Stop()
		if err := wire.WriteLine(conn, wire.Stopped, 5*time.Second); err != nil {
			s.logger.WithError(err).Warn("failed to write STOPPED")
		}
	default:
		start, err := wire.ParseStart(line)
		if err != nil {
			s.logger.WithError(err).WithField("line", line).Warn("malformed START")
			return
		}
		last, busy := s.printer.Run(ctx, start.NodeID, start.Base)
		if busy {
			s.logger.WithField("node", start.NodeID).Warn("rejected START, printer busy")
			if err := wire.WriteLine(conn, wire.PrinterBusy, 5*time.Second); err != nil {
				s.logger.WithError(err).Warn("failed to write PRINTER_BUSY")
			}
			return
		}
		if err := wire.WriteLine(conn, wire.FormatDone(wire.Done{Last: last}), 30*time.Second); err != nil {
			s.logger.WithError(err).Warn("failed to write DONE")
		}
	}
}
