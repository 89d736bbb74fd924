// Package utils holds helpers shared by the tests of this module.
package utils

import (
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/karagenc/sioengine/internal/sync"
)

const DefaultTestWaitTimeout = 12 * time.Second

// TestWaiter is a WaitGroup that gives up after a timeout.
type TestWaiter struct {
	sync.WaitGroup
}

func NewTestWaiter(delta int) *TestWaiter {
	w := new(TestWaiter)
	w.Add(delta)
	return w
}

// WaitTimeout fails the test if the counter doesn't reach zero within timeout.
func (w *TestWaiter) WaitTimeout(t *testing.T, timeout time.Duration) (timedOut bool) {
	t.Helper()
	return waitTimeout(t, w.Wait, timeout)
}

// TestWaiterString waits for a set of names. Each
// name has to be marked done exactly once.
type TestWaiterString struct {
	pending mapset.Set[string]
	wg      sync.WaitGroup
}

func NewTestWaiterString() *TestWaiterString {
	return &TestWaiterString{pending: mapset.NewSet[string]()}
}

func (w *TestWaiterString) Add(name string) {
	if w.pending.Add(name) {
		w.wg.Add(1)
	}
}

// Done fails the test if name isn't pending.
func (w *TestWaiterString) Done(t *testing.T, name string) {
	if !w.pending.Contains(name) {
		t.Errorf("TestWaiterString: '%s' isn't pending", name)
		return
	}
	w.pending.Remove(name)
	w.wg.Done()
}

func (w *TestWaiterString) WaitTimeout(t *testing.T, timeout time.Duration) (timedOut bool) {
	t.Helper()
	timedOut = waitTimeout(t, w.wg.Wait, timeout)
	if timedOut {
		t.Logf("still pending: %v", w.pending.ToSlice())
	}
	return
}

func waitTimeout(t *testing.T, wait func(), timeout time.Duration) bool {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()

	select {
	case <-done:
		return false
	case <-time.After(timeout):
		t.Error("timeout exceeded")
		return true
	}
}
