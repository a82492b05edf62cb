package node

import "github.com/pdMiranda/CD/internal/lamport"

// Priority is the (timestamp, node-id) pair spec.md §3 uses as the sole
// basis for contention resolution: lexicographic order, smaller wins.
// Equality is impossible across two distinct nodes since NodeID is
// unique, so Less is a strict total order.
type Priority struct {
	Timestamp lamport.Time
	NodeID    int
}

// Less reports whether p has strictly higher priority than other.
func (p Priority) Less(other Priority) bool {
	if p.Timestamp != other.Timestamp {
		return p.Timestamp < other.Timestamp
	}
	return p.NodeID < other.NodeID
}
