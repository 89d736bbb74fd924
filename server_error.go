package sio

import (
	"net/http"

	"github.com/karagenc/sioengine/internal/json"
)

// ServerError is written as the body of a rejected request.
type ServerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	ErrorUnknownTransport = iota
	ErrorUnknownSID
	ErrorBadHandshakeMethod
	ErrorBadRequest
	ErrorForbidden
	ErrorUnsupportedProtocolVersion
)

var serverErrors = map[int]ServerError{
	ErrorUnknownTransport:           {Code: 0, Message: "Transport unknown"},
	ErrorUnknownSID:                 {Code: 1, Message: "Session ID unknown"},
	ErrorBadHandshakeMethod:         {Code: 2, Message: "Bad handshake method"},
	ErrorBadRequest:                 {Code: 3, Message: "Bad request"},
	ErrorForbidden:                  {Code: 4, Message: "Forbidden"},
	ErrorUnsupportedProtocolVersion: {Code: 5, Message: "Unsupported protocol version"},
}

func GetServerError(code int) (se ServerError, ok bool) {
	se, ok = serverErrors[code]
	return
}

func writeServerError(w http.ResponseWriter, code int) {
	status := http.StatusBadRequest
	if code == ErrorForbidden {
		status = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	se, ok := serverErrors[code]
	if ok {
		data, _ := json.Marshal(&se)
		w.Write(data)
	}
}
