package netplay

import (
	"errors"
	"fmt"
)

// A ProtocolError means a peer sent bytes that can never be valid under the
// current revision, or a precondition of the wire format was violated.
// It is fatal for the connection it occurred on.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "netplay: protocol error: " + e.Reason }

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err is fatal for the connection.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

var (
	errBufferOverrun = errors.New("buffer overrun")
	errStringTooLong = errors.New("string exceeds field cap")
	errConnClosed    = errors.New("connection closed")
)
