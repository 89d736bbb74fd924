//go:build sio_deadlock

// Package sync re-exports the standard synchronization primitives.
// Build with `-tags sio_deadlock` to replace them with go-deadlock's.
package sync

import (
	"sync"

	"github.com/sasha-s/go-deadlock"
)

type (
	Mutex   = deadlock.Mutex
	RWMutex = deadlock.RWMutex

	// Only the lockers are instrumented.
	Once      = sync.Once
	WaitGroup = sync.WaitGroup
	Map       = sync.Map
)
