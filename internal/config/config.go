// Package config loads the optional startup configuration file described
// in spec.md §6: a JSON document listing cluster membership and the
// printer address. When absent, callers fall back to the fixed naming
// convention in membership.DefaultPeer.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pdMiranda/CD/internal/membership"
)

// File is the on-disk shape of the startup configuration:
//
//	{ "nos": [{id, host, port}], "servidor_impressao": {host, port} }
type File struct {
	Nos               []membership.Peer `json:"nos"`
	ServidorImpressao membership.Peer   `json:"servidor_impressao"`
	Orquestrador      membership.Peer   `json:"orquestrador"`
}

// Load reads and parses a configuration file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// Table builds a membership.Table for node `self` out of the loaded
// config file, excluding self from the peer list.
func (f *File) Table(self int) membership.Table {
	t := membership.Table{
		Self:         self,
		Orchestrator: f.Orquestrador,
		Printer:      f.ServidorImpressao,
	}
	if t.Orchestrator.Host == "" {
		t.Orchestrator = membership.DefaultOrchestrator()
	}
	if t.Printer.Host == "" {
		t.Printer = membership.DefaultPrinter()
	}
	for _, p := range f.Nos {
		if p.ID != self {
			t.Peers = append(t.Peers, p)
		}
	}
	return t
}

// DefaultTable builds a membership.Table from the fixed naming
// convention for a cluster of size n, with no config file present.
func DefaultTable(self, n int) membership.Table {
	t := membership.Table{
		Self:         self,
		Orchestrator: membership.DefaultOrchestrator(),
		Printer:      membership.DefaultPrinter(),
	}
	for i := 1; i <= n; i++ {
		if i != self {
			t.Peers = append(t.Peers, membership.DefaultPeer(i))
		}
	}
	return t
}
