package websocket

import (
	"context"
	"errors"

	"nhooyr.io/websocket"
)

var expectedCloseCodes = []websocket.StatusCode{
	websocket.StatusNormalClosure,
	websocket.StatusGoingAway,
	websocket.StatusNoStatusRcvd,
	websocket.StatusAbnormalClosure,
}

// isExpectedClose reports whether err is an ordinary end of the connection
// rather than a failure.
func isExpectedClose(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	status := websocket.CloseStatus(err)
	for _, expected := range expectedCloseCodes {
		if status == expected {
			return true
		}
	}
	return false
}
