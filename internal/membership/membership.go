// Package membership holds the fixed cluster membership list known at
// startup: node identities, the orchestrator address, and the printer
// address.
package membership

import "fmt"

// Peer identifies one cluster member by id, host and port.
type Peer struct {
	ID   int    `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the host:port dial string for this peer.
func (p Peer) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// DefaultPeer derives a peer address from the fixed convention described
// in spec.md §6: host "node<i>", port 5000+i. This is the Docker-network
// convention the original distributed_node.py used for `other_nodes`.
func DefaultPeer(id int) Peer {
	return Peer{ID: id, Host: fmt.Sprintf("node%d", id), Port: 5000 + id}
}

// DefaultOrchestrator is the fixed orchestrator address when no config
// file overrides it.
func DefaultOrchestrator() Peer {
	return Peer{Host: "orchestrator", Port: 5000}
}

// DefaultPrinter is the fixed printer address when no config file
// overrides it.
func DefaultPrinter() Peer {
	return Peer{Host: "printer", Port: 5001}
}

// Table is the immutable membership known by a node at startup: its own
// id, the list of peers to contact (self excluded), and the addresses of
// the orchestrator and printer.
type Table struct {
	Self         int
	Peers        []Peer
	Orchestrator Peer
	Printer      Peer
}

// IDs returns the ids of the table's peers, in table order.
func (t Table) IDs() []int {
	ids := make([]int, 0, len(t.Peers))
	for _, p := range t.Peers {
		ids = append(ids, p.ID)
	}
	return ids
}

// Lookup finds a peer by id.
func (t Table) Lookup(id int) (Peer, bool) {
	for _, p := range t.Peers {
		if p.ID == id {
			return p, true
		}
	}
	return Peer{}, false
}
