package events

import "time"

// TickEvent is published after every tick, including skipped ones.
type TickEvent struct {
	Ready     bool
	FreeSlots int
	Collected []int
	Hired     string
	Priority  int
	Time      time.Time
}
