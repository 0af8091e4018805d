package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenUseExisting(t *testing.T) {
	s, err := Listen(Options{Port: 0})
	require.NoError(t, err)
	defer s.Close()

	again, err := Listen(Options{Port: 0, UseExisting: true})
	require.NoError(t, err)
	assert.Same(t, s, again)

	fresh, err := Listen(Options{Port: 0})
	require.NoError(t, err)
	defer fresh.Close()
	assert.NotSame(t, s, fresh)
}

func TestBroadcastToSubscriber(t *testing.T) {
	s, err := Listen(Options{Port: 0})
	require.NoError(t, err)
	defer s.Close()

	got := make(chan Event, 4)
	d := NewDispatcher()
	d.On("DONE", func(e Event) { got <- e })
	d.On("invalid", func(e Event) { got <- e })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subErr := make(chan error, 1)
	go func() { subErr <- Subscribe(ctx, URL(s.Port()), d) }()

	require.Eventually(t, func() bool { return s.Hub.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	em := NewEmitter("provider", s.Publish)
	em.Emit(TypeInvalid)
	em.Emit(TypeRun) // no handler registered
	em.Emit(TypeDone, WithErrors(2))

	first := <-got
	assert.Equal(t, TypeInvalid, first.Type)
	assert.Equal(t, "provider", first.Target)
	assert.Equal(t, 1, first.Seq)

	second := <-got
	assert.Equal(t, TypeDone, second.Type)
	assert.Equal(t, 3, second.Seq)
	assert.Equal(t, 2, second.Errors)

	cancel()
	select {
	case err := <-subErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestNilEmitterAndSink(t *testing.T) {
	var em *Emitter
	em.Emit(TypeDone)
	NewEmitter("client", nil).Emit(TypeDone)

	var s *Server
	s.Publish(Event{Type: TypeDone})
}

func TestDispatcherCaseInsensitive(t *testing.T) {
	d := NewDispatcher()
	var calls int
	d.On("watchRun", func(Event) { calls++ })
	d.Dispatch(Event{Type: "WATCHRUN"})
	d.Dispatch(Event{Type: "watchrun"})
	d.Dispatch(Event{Type: "watchClose"})
	assert.Equal(t, 2, calls)
}
