package sio

import "fmt"

// Names that socket.io clients use for their own lifecycle events.
// Emitting them would confuse the peer.
var reservedEvents = map[string]struct{}{
	"connect":        {},
	"connect_error":  {},
	"disconnect":     {},
	"disconnecting":  {},
	"error":          {},
	"newListener":    {},
	"removeListener": {},
}

func IsEventReserved(event string) bool {
	_, ok := reservedEvents[event]
	return ok
}

func errReservedEvent(event string) error {
	return fmt.Errorf("sio: %w: '%s'", ErrReservedEvent, event)
}
