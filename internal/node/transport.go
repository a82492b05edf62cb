package node

import (
	"context"
	"time"

	"github.com/pdMiranda/CD/internal/membership"
	"github.com/pdMiranda/CD/internal/wire"
)

// Transport dispatches REQUEST and REPLY to a peer. A failed send is
// never silent: it is surfaced as an explicit wire.SendResult so the
// caller can decide whether to treat it as spec.md §7's
// TransientSendFailure (fail-stop: count the peer's REPLY as received)
// rather than retry at this layer. This is the "explicit variant, not a
// silent increment" spec.md §9 requires.
type Transport interface {
	SendRequest(ctx context.Context, peer membership.Peer, req wire.Request) wire.SendResult
	SendReply(ctx context.Context, peer membership.Peer, rep wire.Reply) wire.SendResult
}

// TCPTransport is the real Transport, one TCP connection per message as
// spec.md §4.4 describes (the node closes after send).
type TCPTransport struct {
	Timeout time.Duration
}

// NewTCPTransport builds a TCPTransport with the peer-to-peer timeout
// spec.md §5 calls for (1-3s).
func NewTCPTransport(timeout time.Duration) *TCPTransport {
	return &TCPTransport{Timeout: timeout}
}

func (t *TCPTransport) SendRequest(_ context.Context, peer membership.Peer, req wire.Request) wire.SendResult {
	err := wire.SendOneShot(peer.Addr(), wire.FormatRequest(req), t.Timeout)
	return wire.SendResult{Peer: peer.ID, Delivered: err == nil, Err: err}
}

func (t *TCPTransport) SendReply(_ context.Context, peer membership.Peer, rep wire.Reply) wire.SendResult {
	err := wire.SendOneShot(peer.Addr(), wire.FormatReply(rep), t.Timeout)
	return wire.SendResult{Peer: peer.ID, Delivered: err == nil, Err: err}
}
