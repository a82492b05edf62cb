package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.json")
	body := `{
		"nos": [
			{"id": 1, "host": "host1", "port": 5001},
			{"id": 2, "host": "host2", "port": 5002},
			{"id": 3, "host": "host3", "port": 5003}
		],
		"servidor_impressao": {"host": "printerhost", "port": 9000}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	f, err := Load(path)
	require.NoError(t, err)

	table := f.Table(2)
	assert.Equal(t, 2, table.Self)
	assert.Len(t, table.Peers, 2)
	assert.ElementsMatch(t, []int{1, 3}, table.IDs())
	assert.Equal(t, "printerhost:9000", table.Printer.Addr())
	// Orquestrador omitted from config: falls back to the fixed default.
	assert.Equal(t, "orchestrator:5000", table.Orchestrator.Addr())
}

func TestDefaultTableConvention(t *testing.T) {
	table := DefaultTable(2, 3)
	assert.ElementsMatch(t, []int{1, 3}, table.IDs())
	p, ok := table.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "node1:5001", p.Addr())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path.json")
	assert.Error(t, err)
}
