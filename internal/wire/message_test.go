package wire

import (
	"testing"

	"github.com/pdMiranda/CD/internal/lamport"
	"github.com/stretchr/testify/assert"
)

func TestRequestRoundTrip(t *testing.T) {
	r := Request{Timestamp: 7, NodeID: 3}
	parsed, err := ParseRequest(FormatRequest(r))
	assert.NoError(t, err)
	assert.Equal(t, r, parsed)
}

func TestReplyRoundTrip(t *testing.T) {
	r := Reply{Timestamp: lamport.Time(42), NodeID: 1}
	parsed, err := ParseReply(FormatReply(r))
	assert.NoError(t, err)
	assert.Equal(t, r, parsed)
}

func TestEnterRoundTrip(t *testing.T) {
	e := Enter{NodeID: 2, Clock: 9}
	parsed, err := ParseEnter(FormatEnter(e))
	assert.NoError(t, err)
	assert.Equal(t, e, parsed)
}

func TestStartDoneRoundTrip(t *testing.T) {
	s := Start{NodeID: 1, Base: 0, Clock: 1}
	parsed, err := ParseStart(FormatStart(s))
	assert.NoError(t, err)
	assert.Equal(t, s, parsed)

	d := Done{Last: 3}
	pd, err := ParseDone(FormatDone(d))
	assert.NoError(t, err)
	assert.Equal(t, d, pd)
}

func TestMalformedMessagesRejected(t *testing.T) {
	cases := []string{"", "GARBAGE", "REQUEST,1", "REQUEST,x,1", "ENTER:1", "START:1:2", "DONE:x"}
	for _, c := range cases {
		_, err := ParseRequest(c)
		assert.Error(t, err, "ParseRequest(%q)", c)
		_, err = ParseReply(c)
		assert.Error(t, err, "ParseReply(%q)", c)
		_, err = ParseEnter(c)
		assert.Error(t, err, "ParseEnter(%q)", c)
		_, err = ParseStart(c)
		assert.Error(t, err, "ParseStart(%q)", c)
		_, err = ParseDone(c)
		assert.Error(t, err, "ParseDone(%q)", c)
	}
}
