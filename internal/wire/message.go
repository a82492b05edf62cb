// Package wire implements the line-oriented ASCII wire protocol shared by
// the node, orchestrator and printer, as specified in spec.md §4.4:
//
//	REQUEST,<ts>,<node_id>
//	REPLY,<ts>,<node_id>
//	ENTER:<node_id>:<clock>        -> ENTER_OK | SOMEONE_IS_IN_CS
//	EXIT                           -> EXIT_OK
//	START:<node_id>:<base>:<clock> -> DONE:<last> | PRINTER_BUSY
//	STOP                           -> STOPPED
//
// Every message is one line. REQUEST, REPLY, START and STOP each use their
// own TCP connection; ENTER and EXIT share one Orchestrator session
// connection. Unknown prefixes are
// a MalformedMessage: callers log and drop them without mutating state.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdMiranda/CD/internal/lamport"
)

// ErrMalformed is returned when a line does not match any known message
// grammar, or a known prefix has the wrong number/type of fields.
var ErrMalformed = errors.New("malformed message")

const (
	EnterOK     = "ENTER_OK"
	SomeoneInCS = "SOMEONE_IS_IN_CS"
	Exit        = "EXIT"
	ExitOK      = "EXIT_OK"
	Stop        = "STOP"
	Stopped     = "STOPPED"
	PrinterBusy = "PRINTER_BUSY"
)

// Request is a peer-to-peer REQUEST message.
type Request struct {
	Timestamp lamport.Time
	NodeID    int
}

// FormatRequest renders "REQUEST,<ts>,<node_id>".
func FormatRequest(r Request) string {
	return fmt.Sprintf("REQUEST,%d,%d", r.Timestamp, r.NodeID)
}

// ParseRequest parses a "REQUEST,<ts>,<node_id>" line.
func ParseRequest(line string) (Request, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 || fields[0] != "REQUEST" {
		return Request{}, ErrMalformed
	}
	ts, err1 := strconv.ParseInt(fields[1], 10, 64)
	id, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return Request{}, ErrMalformed
	}
	return Request{Timestamp: lamport.Time(ts), NodeID: id}, nil
}

// Reply is a peer-to-peer REPLY message.
type Reply struct {
	Timestamp lamport.Time
	NodeID    int
}

// FormatReply renders "REPLY,<ts>,<node_id>".
func FormatReply(r Reply) string {
	return fmt.Sprintf("REPLY,%d,%d", r.Timestamp, r.NodeID)
}

// ParseReply parses a "REPLY,<ts>,<node_id>" line.
func ParseReply(line string) (Reply, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 || fields[0] != "REPLY" {
		return Reply{}, ErrMalformed
	}
	ts, err1 := strconv.ParseInt(fields[1], 10, 64)
	id, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return Reply{}, ErrMalformed
	}
	return Reply{Timestamp: lamport.Time(ts), NodeID: id}, nil
}

// Enter is the first frame of an Orchestrator session.
type Enter struct {
	NodeID int
	Clock  lamport.Time
}

// FormatEnter renders "ENTER:<node_id>:<clock>".
func FormatEnter(e Enter) string {
	return fmt.Sprintf("ENTER:%d:%d", e.NodeID, e.Clock)
}

// ParseEnter parses an "ENTER:<node_id>:<clock>" line.
func ParseEnter(line string) (Enter, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 3 || fields[0] != "ENTER" {
		return Enter{}, ErrMalformed
	}
	id, err1 := strconv.Atoi(fields[1])
	clock, err2 := strconv.ParseInt(fields[2], 10, 64)
	if err1 != nil || err2 != nil {
		return Enter{}, ErrMalformed
	}
	return Enter{NodeID: id, Clock: lamport.Time(clock)}, nil
}

// Start is the Orchestrator->Printer command that begins a round.
type Start struct {
	NodeID int
	Base   int64
	Clock  lamport.Time
}

// FormatStart renders "START:<node_id>:<base>:<clock>".
func FormatStart(s Start) string {
	return fmt.Sprintf("START:%d:%d:%d", s.NodeID, s.Base, s.Clock)
}

// ParseStart parses a "START:<node_id>:<base>:<clock>" line.
func ParseStart(line string) (Start, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 4 || fields[0] != "START" {
		return Start{}, ErrMalformed
	}
	id, err1 := strconv.Atoi(fields[1])
	base, err2 := strconv.ParseInt(fields[2], 10, 64)
	clock, err3 := strconv.ParseInt(fields[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Start{}, ErrMalformed
	}
	return Start{NodeID: id, Base: base, Clock: lamport.Time(clock)}, nil
}

// Done is the Printer's reply to a Start, carrying the new high-water
// mark.
type Done struct {
	Last int64
}

// FormatDone renders "DONE:<last>".
func FormatDone(d Done) string {
	return fmt.Sprintf("DONE:%d", d.Last)
}

// ParseDone parses a "DONE:<last>" line.
func ParseDone(line string) (Done, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 2 || fields[0] != "DONE" {
		return Done{}, ErrMalformed
	}
	last, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Done{}, ErrMalformed
	}
	return Done{Last: last}, nil
}
