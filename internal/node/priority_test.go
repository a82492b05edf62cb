package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityLessByTimestamp(t *testing.T) {
	a := Priority{Timestamp: 1, NodeID: 9}
	b := Priority{Timestamp: 2, NodeID: 0}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestPriorityTieBrokenByNodeID(t *testing.T) {
	a := Priority{Timestamp: 5, NodeID: 1}
	b := Priority{Timestamp: 5, NodeID: 2}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
