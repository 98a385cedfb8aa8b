package mqtt

import "errors"

var (
	// ErrAckTimeout is returned when the host does not acknowledge a command in time.
	ErrAckTimeout = errors.New("mqtt: ack timeout")
	// ErrCommandRejected is returned when the host acknowledges a command with a failure.
	ErrCommandRejected = errors.New("mqtt: command rejected by host")
	// ErrNoState is returned before the first state message has been received.
	ErrNoState = errors.New("mqtt: no host state received")
	// ErrStaleState is returned when the last state message is too old.
	ErrStaleState = errors.New("mqtt: host state is stale")
)
