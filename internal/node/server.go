package node

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdMiranda/CD/internal/wire"
)

// Server accepts inbound REQUEST/REPLY connections from peers and
// dispatches them to a Node. One connection per message, matching
// spec.md §4.4's one-shot line protocol.
type Server struct {
	node     *Node
	listener net.Listener
	logger   *logrus.Entry
}

// Listen opens the TCP listener a Server will Serve on.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// NewServer wraps an already-open listener.
func NewServer(n *Node, ln net.Listener, logger *logrus.Entry) *Server {
	return &Server{node: n, listener: ln, logger: logger}
}

// Serve accepts connections until ctx is cancelled, at which point it
// closes the listener and returns. Grounded in
// original_source/TP_01/distributed_node.py's accept loop, which polls
// with a short timeout so a shutdown flag can be observed promptly;
// here the listener is closed when ctx is cancelled, which unblocks
// Accept, the idiomatic Go equivalent.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.WithError(err).Warn("accept failed")
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	line, err := wire.ReadLine(conn, 5*time.Second)
	if err != nil {
		s.logger.WithError(err).Debug("failed to read inbound message")
		return
	}

	switch {
	case strings.HasPrefix(line, "REQUEST,"):
		req, err := wire.ParseRequest(line)
		if err != nil {
			s.logger.WithError(err).WithField("line", line).Warn("malformed REQUEST")
			return
		}
		s.node.HandleRequest(req.Timestamp, req.NodeID)
	case strings.HasPrefix(line, "REPLY,"):
		rep, err := wire.ParseReply(line)
		if err != nil {
			s.logger.WithError(err).WithField("line", line).Warn("malformed REPLY")
			return
		}
		s.node.HandleReply(rep.Timestamp, rep.NodeID)
	default:
		s.logger.WithField("line", line).Warn("unrecognized message on peer port")
	}
}
