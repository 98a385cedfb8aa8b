// Package scheduler produces the tick stream driving the dispatcher.
package scheduler
