package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_deliversInRegistrationOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []string
	bus.On(CartOpen, func(Event) { got = append(got, "first") }).
		On(CartOpen, func(Event) { got = append(got, "second") })

	bus.Emit(Opened())

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBus_reentrantPublishIsQueued(t *testing.T) {
	bus := NewBus(nil)
	var got []string

	bus.On(CartOpen, func(Event) {
		got = append(got, "open:start")
		bus.Publish(Updated(500))
		got = append(got, "open:end")
	})
	bus.On(CartUpdate, func(e Event) {
		got = append(got, "update:"+e.Total.String())
	})

	bus.Emit(Opened())

	// the update published during open is handled only after open completes
	assert.Equal(t, []string{"open:start", "open:end", "update:5.00"}, got)
}

func TestBus_publishOutsideDoWaitsForNextDo(t *testing.T) {
	bus := NewBus(nil)
	count := 0
	bus.On(CartClose, func(Event) { count++ })

	bus.Publish(Closed())
	assert.Equal(t, 0, count)

	bus.Do(func() {})
	assert.Equal(t, 1, count)
}

func TestBus_drainLimitStopsRunawayLoops(t *testing.T) {
	bus := NewBus(nil, WithMaxDrain(10))
	count := 0
	bus.On(CartUpdate, func(e Event) {
		count++
		bus.Publish(e)
	})

	bus.Emit(Updated(1))

	assert.Equal(t, 10, count)

	// the queue was dropped, a later emit starts fresh
	bus.Emit(Closed())
}

func TestBus_handlerPanicIsContained(t *testing.T) {
	bus := NewBus(nil)
	after := false
	bus.On(CartOpen, func(Event) { panic("boom") })
	bus.On(CartOpen, func(Event) { after = true })

	require.NotPanics(t, func() { bus.Emit(Opened()) })
	assert.True(t, after, "later handlers still run")

	// the bus is still usable
	ran := false
	bus.Do(func() { ran = true })
	assert.True(t, ran)
}

func TestBus_doSerializesGoroutines(t *testing.T) {
	bus := NewBus(nil)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Do(func() { counter++ })
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "cart:update{total=9.99}", Updated(999).String())
	assert.Equal(t, "cart:open", Opened().String())
	assert.Equal(t, "cart:close", Closed().String())
}
