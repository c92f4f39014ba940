package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := NewBus[int](zerolog.Nop())
	var got []string
	b.Subscribe(func(v int) { got = append(got, "a") })
	b.Subscribe(func(v int) { got = append(got, "b") })
	b.Subscribe(func(v int) { got = append(got, "c") })

	b.Publish(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBus_PanickingListenerIsIsolated(t *testing.T) {
	b := NewBus[string](zerolog.Nop())
	var seen []string
	b.Subscribe(func(v string) { seen = append(seen, "first:"+v) })
	b.Subscribe(func(string) { panic("listener exploded") })
	b.Subscribe(func(v string) { seen = append(seen, "third:"+v) })

	require.NotPanics(t, func() { b.Publish("x") })
	assert.Equal(t, []string{"first:x", "third:x"}, seen)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus[int](zerolog.Nop())
	calls := 0
	s1 := b.Subscribe(func(int) { calls++ })
	s2 := b.Subscribe(func(int) { calls += 10 })
	require.Equal(t, 2, b.Len())

	assert.True(t, b.Unsubscribe(s1))
	assert.False(t, b.Unsubscribe(s1))
	assert.False(t, b.Unsubscribe(0))

	b.Publish(0)
	assert.Equal(t, 10, calls)

	b.Unsubscribe(s2)
	b.Publish(0)
	assert.Equal(t, 10, calls)
	assert.Equal(t, 0, b.Len())
}

func TestBus_ListenerMaySubscribeDuringPublish(t *testing.T) {
	b := NewBus[int](zerolog.Nop())
	late := 0
	b.Subscribe(func(int) {
		b.Subscribe(func(int) { late++ })
	})

	b.Publish(1)
	assert.Equal(t, 0, late, "listeners added during publish wait for the next one")
	b.Publish(2)
	assert.Equal(t, 1, late)
}
