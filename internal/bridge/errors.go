package bridge

import "errors"

var (
	ErrNotConnected = errors.New("engine bridge not connected")
	ErrTimeout      = errors.New("engine bridge request timed out")
	ErrDecodeFailed = errors.New("engine bridge reply decoding failed")
)

// ServerError carries the message string of an error-typed reply that was
// matched to a request.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "engine bridge reported an error"
	}
	return "engine bridge error: " + e.Message
}
