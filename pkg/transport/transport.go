// Package transport holds the contract shared by both link drivers
// (pkg/stream, pkg/ble) and both endpoint façades (pkg/host, pkg/device):
// the connection-state machine and the protocol's error vocabulary.
package transport

import (
	"fmt"
	"sync/atomic"
	"time"
)

// State is one of the two states an endpoint's connection lifecycle can
// be in. Operations other than Connect are only valid in StateConnected.
type State int32

const (
	// StateDisconnected is the initial and terminal state.
	StateDisconnected State = iota
	// StateConnected is entered on a successful connect and left on
	// disconnect or unrecoverable link failure.
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// ConnState is an atomic holder for State shared between an endpoint and
// the reader/writer tasks of its link driver.
type ConnState struct {
	v atomic.Int32
}

// Set stores s.
func (c *ConnState) Set(s State) {
	c.v.Store(int32(s))
}

// Get loads the current state.
func (c *ConnState) Get() State {
	return State(c.v.Load())
}

// IsConnected reports whether the current state is StateConnected.
func (c *ConnState) IsConnected() bool {
	return c.Get() == StateConnected
}

// ErrorKind enumerates the protocol's error vocabulary (shared by the
// wire format and both endpoints).
type ErrorKind int

const (
	// ErrKindNotConnected: operation called while disconnected.
	ErrKindNotConnected ErrorKind = iota
	// ErrKindTimeout: response not received within the request window.
	ErrKindTimeout
	// ErrKindInvalidMessage: a frame failed to decode.
	ErrKindInvalidMessage
	// ErrKindProtocolIssue: response variant did not match the request,
	// or a write to the underlying link failed.
	ErrKindProtocolIssue
	// ErrKindWidgetNotFound: GetWidget on an unknown id.
	ErrKindWidgetNotFound
	// ErrKindInternalError: resource exhaustion (too many refresh tasks,
	// a full queue past retry, etc).
	ErrKindInternalError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindNotConnected:
		return "not_connected"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindInvalidMessage:
		return "invalid_message"
	case ErrKindProtocolIssue:
		return "protocol_issue"
	case ErrKindWidgetNotFound:
		return "widget_not_found"
	case ErrKindInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Error is the transport's error type. A peer's error response is
// forwarded to the caller verbatim as an *Error; it is also how decode
// and protocol failures surface locally.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is matches any *Error of the same Kind, so errors.Is works against the
// sentinels below even for errors reconstructed from the wire.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds an *Error with an explicit message, for contexts where
// the generic sentinel's message isn't specific enough to log usefully.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Sentinel errors for the six kinds in the protocol's error enum. Compare
// with errors.Is, or switch on (*Error).Kind when the message matters.
var (
	ErrNotConnected   = &Error{Kind: ErrKindNotConnected, Msg: "endpoint is not connected"}
	ErrTimeout        = &Error{Kind: ErrKindTimeout, Msg: "response not received within timeout"}
	ErrInvalidMessage = &Error{Kind: ErrKindInvalidMessage, Msg: "frame failed to decode"}
	ErrProtocolIssue  = &Error{Kind: ErrKindProtocolIssue, Msg: "response variant did not match request"}
	ErrWidgetNotFound = &Error{Kind: ErrKindWidgetNotFound, Msg: "widget id not found"}
	ErrInternalError  = &Error{Kind: ErrKindInternalError, Msg: "internal resource exhausted"}
)

// Config carries the knobs shared by both link drivers and both endpoint
// façades.
type Config struct {
	// RequestTimeout is how long an initiator waits for a response
	// before the correlation entry is freed and ErrTimeout is returned.
	RequestTimeout time.Duration

	// DeviceGrace is additional grace added on top of RequestTimeout for
	// requests the device initiates, on either link (see EffectiveTimeout).
	DeviceGrace time.Duration
}

// DefaultConfig returns the documented default timeouts (5s request
// window, 2s of additional device-side grace).
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 5 * time.Second,
		DeviceGrace:    2 * time.Second,
	}
}

// EffectiveTimeout returns RequestTimeout, plus DeviceGrace when onDevice
// is true.
func (c Config) EffectiveTimeout(onDevice bool) time.Duration {
	if onDevice {
		return c.RequestTimeout + c.DeviceGrace
	}
	return c.RequestTimeout
}
