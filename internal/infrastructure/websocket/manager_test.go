package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectReplacesOlderClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)

	first := &Client{UserID: "u1", Send: make(chan []byte, 1)}
	second := &Client{UserID: "u1", Send: make(chan []byte, 1)}
	m.Register <- first
	m.Register <- second

	// The replacement closes the older client's queue, which is what makes
	// its WritePump exit.
	select {
	case _, ok := <-first.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("older client's send channel was not closed")
	}

	m.SendToUser("u1", []byte("frame"))
	select {
	case frame := <-second.Send:
		assert.Equal(t, []byte("frame"), frame)
	case <-time.After(time.Second):
		t.Fatal("newer client did not receive the frame")
	}
}

func TestUnregisterIgnoresReplacedClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)

	first := &Client{UserID: "u1", Send: make(chan []byte, 1)}
	second := &Client{UserID: "u1", Send: make(chan []byte, 1)}
	m.Register <- first
	m.Register <- second

	// The old connection's ReadPump still unregisters itself on exit; that
	// must not tear down the replacement.
	m.Unregister <- first

	m.SendToUser("u1", []byte("frame"))
	select {
	case frame := <-second.Send:
		assert.Equal(t, []byte("frame"), frame)
	case <-time.After(time.Second):
		t.Fatal("replacement client was torn down by the stale unregister")
	}
}

func TestSendToUserSafeDuringReconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager()
	m.Start(ctx)

	// Feed callbacks deliver frames from store goroutines while the same
	// user reconnects; a frame landing on a just-closed queue would panic
	// the whole process.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			m.Register <- &Client{UserID: "u1", Send: make(chan []byte, 64)}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			m.SendToUser("u1", []byte("frame"))
		}
	}()
	wg.Wait()
}
