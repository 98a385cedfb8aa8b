package events

import "time"

// Command names carried by CommandEvent.
const (
	CommandCollect = "collect"
	CommandSelect  = "select"
	CommandHire    = "hire"
)

// CommandEvent is published for each command sent to the host.
type CommandEvent struct {
	Command   string
	Retriever string
	Slot      int
	Err       error
	Latency   time.Duration
}
