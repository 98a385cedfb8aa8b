// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - TickEvent: outcome of one dispatch tick
//   - CommandEvent: result of a collect, select or hire command sent to the host
package events
