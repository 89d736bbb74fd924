package sio

type Reason string

const (
	ReasonUnknown Reason = "unknown"

	// The peer didn't send anything within PingInterval + PingTimeout.
	ReasonTimeout Reason = "ping timeout"

	// The peer closed the connection, or sent a CLOSE or DISCONNECT packet.
	ReasonClosedRemotely Reason = "closed remotely"

	// The connection failed.
	ReasonError Reason = "transport error"

	// A connect listener rejected the connection.
	ReasonConnectFailed Reason = "connect failed"

	// The server closed the connection (Socket.Disconnect, Server.Close).
	ReasonClosedLocally Reason = "closed locally"
)
