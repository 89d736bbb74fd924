package sio

import "fmt"

var (
	ErrNoConnection           = fmt.Errorf("sio: session has no connection")
	ErrConnectionAlreadyBound = fmt.Errorf("sio: a connection is already bound to the session")
	ErrSessionClosed          = fmt.Errorf("sio: session is closed")
	ErrReservedEvent          = fmt.Errorf("sio: event name is reserved")

	errNoBinaryPacketInProgress = fmt.Errorf("binary attachment received while no binary packet is in progress")
	errUnexpectedPacket         = fmt.Errorf("unexpected packet")
)

type ErrorCallback func(err error)

// This is a wrapper for the errors internal to sioengine.
//
// If you see this error, this means that the problem is
// neither a network error, nor an error caused by you, but
// the source of the error is sioengine. Open an issue on GitHub.
type InternalError struct {
	err error
}

func (e InternalError) Error() string {
	return "sio: internal error: " + e.err.Error()
}

func (e InternalError) Unwrap() error {
	return e.err
}

func wrapInternalError(err error) *InternalError {
	return &InternalError{err: err}
}

// ProtocolError is returned when the peer sends something that
// doesn't conform to the protocol. The offending packet is dropped.
type ProtocolError struct {
	SessionID string
	err       error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("sio: protocol error (session %s): %v", e.SessionID, e.err)
}

func (e *ProtocolError) Unwrap() error {
	return e.err
}

func newProtocolError(sid string, err error) *ProtocolError {
	return &ProtocolError{SessionID: sid, err: err}
}

// ConnectError can be returned from a ConnectListener to reject
// the connection to a namespace. The peer receives Data if it is set,
// Message otherwise.
type ConnectError struct {
	Message string
	Data    any
}

func (e *ConnectError) Error() string {
	return "sio: connection rejected: " + e.Message
}

// Turns a panic inside an application callback into an error.
func recoverError(err *error) {
	if r := recover(); r != nil {
		e, ok := r.(error)
		if !ok {
			e = fmt.Errorf("handler error: %v", r)
		}
		*err = e
	}
}
