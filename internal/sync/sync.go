//go:build !sio_deadlock

// Package sync re-exports the standard synchronization primitives.
// Build with `-tags sio_deadlock` to replace them with go-deadlock's.
package sync

import "sync"

type (
	Mutex     = sync.Mutex
	RWMutex   = sync.RWMutex
	Once      = sync.Once
	WaitGroup = sync.WaitGroup
	Map       = sync.Map
)
