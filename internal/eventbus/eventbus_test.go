package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := New()
	a, b := bus.Subscribe(), bus.Subscribe()
	bus.Publish("tick")
	assert.Equal(t, "tick", <-a)
	assert.Equal(t, "tick", <-b)
	assert.Zero(t, bus.Dropped())
}

func TestBusDropsOnFullSubscriber(t *testing.T) {
	bus := NewWithBuffer(1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	assert.Equal(t, uint64(1), bus.Dropped())
	assert.Equal(t, 1, <-ch)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
	bus.Unsubscribe(ch)
	bus.Publish("ignored")
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	bus.Close()
	for _, ch := range []<-chan Event{ch1, ch2} {
		_, ok := <-ch
		require.False(t, ok)
	}
	bus.Publish("after close")
	bus.Unsubscribe(ch1)

	late := bus.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}
