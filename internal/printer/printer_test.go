package printer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func fastConfig() Config {
	return Config{MinK: 3, MaxK: 3, Tick: time.Millisecond}
}

func TestRunPrintsExactlyKNumbersAboveBase(t *testing.T) {
	p := New(testLogger(), fastConfig())
	last, busy := p.Run(context.Background(), 1, 100)
	require.False(t, busy)
	assert.Equal(t, int64(103), last)
	assert.False(t, p.Busy())
}

func TestRunRejectsConcurrentRound(t *testing.T) {
	p := New(testLogger(), Config{MinK: 5, MaxK: 5, Tick: 20 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), 1, 0)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)

	_, busy := p.Run(context.Background(), 2, 0)
	assert.True(t, busy)

	<-done
}

func TestStopEndsRoundEarly(t *testing.T) {
	p := New(testLogger(), Config{MinK: 10, MaxK: 10, Tick: 20 * time.Millisecond})

	resultCh := make(chan int64)
	go func() {
		last, _ := p.Run(context.Background(), 1, 0)
		resultCh <- last
	}()

	time.Sleep(25 * time.Millisecond)
	p.Stop()

	last := <-resultCh
	assert.Less(t, last, int64(10))
	assert.False(t, p.Busy())
}

func TestContextCancellationEndsRound(t *testing.T) {
	p := New(testLogger(), Config{MinK: 10, MaxK: 10, Tick: 50 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, busy := p.Run(ctx, 1, 0)
	assert.False(t, busy)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.False(t, p.Busy())
}
