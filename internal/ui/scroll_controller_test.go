package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketchat/internal/domain/entity"
)

// fakeClock lets tests step through the debounce window deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController() (*ScrollController, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewScrollController()
	c.now = clock.now
	return c, clock
}

func msgs(senders ...string) []*entity.Message {
	list := make([]*entity.Message, 0, len(senders))
	for _, s := range senders {
		list = append(list, &entity.Message{Sender: s})
	}
	return list
}

func TestOnSnapshotOwnMessageJumps(t *testing.T) {
	c, clock := newTestController()

	// Even a user who scrolled far up sees their own message instantly.
	c.OnUserScroll(0, 600, 5000)
	clock.advance(time.Second)
	assert.False(t, c.AutoScroll())

	action := c.OnSnapshot(msgs("other", "me"), "me")
	assert.Equal(t, ScrollJump, action)
}

func TestOnSnapshotInboundGrowth(t *testing.T) {
	c, clock := newTestController()

	// Pinned to the bottom: inbound messages scroll smoothly.
	assert.Equal(t, ScrollAnimate, c.OnSnapshot(msgs("other"), "me"))

	// Scrolled away: inbound messages leave the view alone.
	c.OnUserScroll(0, 600, 5000)
	clock.advance(time.Second)
	assert.Equal(t, ScrollNone, c.OnSnapshot(msgs("other", "other"), "me"))
}

func TestOnSnapshotNonGrowingEmission(t *testing.T) {
	c, clock := newTestController()

	c.OnSnapshot(msgs("other", "other"), "me")

	// A read-flag rewrite re-renders the same count; while pinned, the view
	// snaps back without animating.
	assert.Equal(t, ScrollJump, c.OnSnapshot(msgs("other", "other"), "me"))

	// Scrolled away it does nothing.
	c.OnUserScroll(0, 600, 5000)
	clock.advance(time.Second)
	assert.Equal(t, ScrollNone, c.OnSnapshot(msgs("other", "other"), "me"))
}

func TestOnSnapshotEmptyList(t *testing.T) {
	c, _ := newTestController()
	assert.Equal(t, ScrollNone, c.OnSnapshot(nil, "me"))
}

func TestOnUserScrollNearBottomThreshold(t *testing.T) {
	tests := []struct {
		name     string
		offset   float64
		viewport float64
		extent   float64
		want     bool
	}{
		{"at the very bottom", 4400, 600, 5000, true},
		{"just inside threshold", 4351, 600, 5000, true},
		{"exactly at threshold", 4350, 600, 5000, false},
		{"far above", 0, 600, 5000, false},
		{"content shorter than viewport", 0, 600, 400, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newTestController()
			clock.advance(time.Second)
			c.OnUserScroll(tt.offset, tt.viewport, tt.extent)
			assert.Equal(t, tt.want, c.AutoScroll())
		})
	}
}

func TestOnUserScrollDebounce(t *testing.T) {
	c, clock := newTestController()
	clock.advance(time.Second)

	c.OnUserScroll(0, 600, 5000)
	assert.False(t, c.AutoScroll())

	// A burst inside the window is discarded.
	clock.advance(20 * time.Millisecond)
	c.OnUserScroll(4400, 600, 5000)
	assert.False(t, c.AutoScroll())

	// Once the window has passed the new position counts.
	clock.advance(scrollDebounce)
	c.OnUserScroll(4400, 600, 5000)
	assert.True(t, c.AutoScroll())
}

func TestOnSendRepins(t *testing.T) {
	c, clock := newTestController()
	clock.advance(time.Second)

	c.OnUserScroll(0, 600, 5000)
	assert.False(t, c.AutoScroll())

	c.OnSend()
	assert.True(t, c.AutoScroll())
	assert.Equal(t, ScrollJump, c.OnSnapshot(msgs("me"), "me"))
}
