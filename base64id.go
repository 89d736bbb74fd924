package sio

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

const (
	// Bytes per session ID, before encoding.
	Base64IDSize = 15
	// Attempts at finding a free session ID.
	Base64IDMaxTry = 10

	seqSize = 4
)

var (
	ErrBase64IDMaxTryReached = fmt.Errorf("sio: session ID generation failed: Base64IDMaxTry reached")
	errBase64IDInvalidSize   = fmt.Errorf("sio: session ID generation failed: invalid size")

	idSeq atomic.Uint32
)

// GenerateBase64ID returns a URL-safe base64 ID made of size bytes:
// random bytes followed by a process-wide sequence number. Two IDs
// generated within 2^32 calls of each other can't be equal.
func GenerateBase64ID(size int) (string, error) {
	if size <= seqSize {
		return "", errBase64IDInvalidSize
	}

	b := make([]byte, size)
	n := size - seqSize
	if _, err := rand.Read(b[:n]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint32(b[n:], idSeq.Add(1))
	return base64.URLEncoding.EncodeToString(b), nil
}
