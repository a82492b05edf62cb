package orchestrator

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdMiranda/CD/internal/lamport"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakePrinterClient's Start is called from Orchestrator.Enter's notifyPrinter
// goroutine, never inline — tests that assert on starts/lastBase must drain
// started first, or they race against that goroutine.
type fakePrinterClient struct {
	mu       sync.Mutex
	starts   int
	stops    int
	lastBase int64
	nextLast int64
	started  chan struct{}
}

func newFakePrinterClient() *fakePrinterClient {
	return &fakePrinterClient{started: make(chan struct{}, 16)}
}

func (f *fakePrinterClient) Start(_ context.Context, nodeID int, base int64, clock lamport.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.lastBase = base
	f.started <- struct{}{}
	if f.nextLast == 0 {
		return base + 1, nil
	}
	return f.nextLast, nil
}

func (f *fakePrinterClient) Stop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func TestEnterAdmitsWhenFree(t *testing.T) {
	printer := newFakePrinterClient()
	o := New(printer, testLogger())

	admitted := o.Enter(context.Background(), 1, lamport.Time(1))
	assert.True(t, admitted)

	user, held := o.CurrentUser()
	assert.True(t, held)
	assert.Equal(t, 1, user)

	<-printer.started // Enter only flips current_user; the printer round runs in a goroutine
	printer.mu.Lock()
	assert.Equal(t, 1, printer.starts)
	printer.mu.Unlock()
}

func TestEnterRejectsSecondNodeWhileHeld(t *testing.T) {
	printer := newFakePrinterClient()
	o := New(printer, testLogger())

	require.True(t, o.Enter(context.Background(), 1, lamport.Time(1)))
	assert.False(t, o.Enter(context.Background(), 2, lamport.Time(1)))
}

func TestExitReleasesAndAllowsNextEnter(t *testing.T) {
	printer := newFakePrinterClient()
	o := New(printer, testLogger())

	require.True(t, o.Enter(context.Background(), 1, lamport.Time(1)))
	o.Exit(context.Background(), 1)

	_, held := o.CurrentUser()
	assert.False(t, held)
	assert.Equal(t, 1, printer.stops)

	assert.True(t, o.Enter(context.Background(), 2, lamport.Time(2)))
}

func TestExitByWrongNodeIsNoOp(t *testing.T) {
	printer := newFakePrinterClient()
	o := New(printer, testLogger())

	require.True(t, o.Enter(context.Background(), 1, lamport.Time(1)))
	o.Exit(context.Background(), 2) // not the current holder

	user, held := o.CurrentUser()
	assert.True(t, held)
	assert.Equal(t, 1, user)
	assert.Equal(t, 0, printer.stops)
}

func TestExitIsIdempotent(t *testing.T) {
	printer := newFakePrinterClient()
	o := New(printer, testLogger())

	require.True(t, o.Enter(context.Background(), 1, lamport.Time(1)))
	o.Exit(context.Background(), 1)
	o.Exit(context.Background(), 1) // second exit must not panic or double-stop

	assert.Equal(t, 1, printer.stops)
}

func TestForceReleaseFreesAbandonedSession(t *testing.T) {
	printer := newFakePrinterClient()
	o := New(printer, testLogger())

	require.True(t, o.Enter(context.Background(), 1, lamport.Time(1)))
	o.ForceRelease(context.Background(), "test timeout")

	_, held := o.CurrentUser()
	assert.False(t, held)
	assert.Equal(t, 1, printer.stops)

	assert.True(t, o.Enter(context.Background(), 2, lamport.Time(2)))
}

func TestForceReleaseWhenFreeIsNoOp(t *testing.T) {
	printer := newFakePrinterClient()
	o := New(printer, testLogger())

	o.ForceRelease(context.Background(), "nothing to release")
	assert.Equal(t, 0, printer.stops)
}

// lastPrintedForTest reads the Orchestrator's high-water mark; notifyPrinter sets it
// asynchronously after Enter returns, so tests must poll rather than read it
// immediately.
func (o *Orchestrator) lastPrintedForTest() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastPrinted
}

func TestLastPrintedCarriesAcrossRounds(t *testing.T) {
	printer := newFakePrinterClient()
	printer.nextLast = 7
	o := New(printer, testLogger())

	require.True(t, o.Enter(context.Background(), 1, lamport.Time(1)))
	require.Eventually(t, func() bool { return o.lastPrintedForTest() == 7 }, time.Second, time.Millisecond)
	<-printer.started // drain round 1's signal so the receive below waits for round 2
	o.Exit(context.Background(), 1)

	printer.mu.Lock()
	printer.nextLast = 0
	printer.mu.Unlock()

	require.True(t, o.Enter(context.Background(), 2, lamport.Time(2)))
	<-printer.started // wait for round 2's notifyPrinter to read the carried-over base
	printer.mu.Lock()
	assert.Equal(t, int64(7), printer.lastBase)
	printer.mu.Unlock()
}
