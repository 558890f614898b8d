package ui

import (
	"time"

	"marketchat/internal/domain/entity"
)

// ScrollAction tells the view what to do with its scroll position after a
// message-list emission.
type ScrollAction int

const (
	// ScrollNone leaves the position alone; the user is reading history.
	ScrollNone ScrollAction = iota
	// ScrollJump snaps to the bottom with no animation.
	ScrollJump
	// ScrollAnimate scrolls to the bottom with a smoothing animation.
	ScrollAnimate
)

const (
	// nearBottomThreshold is how close to the bottom, in pixels, still
	// counts as "at the bottom" when deciding whether to keep auto-scrolling.
	nearBottomThreshold = 50.0

	// scrollDebounce discards auto-scroll recomputations arriving faster
	// than this, so momentum scrolling does not thrash the flag.
	scrollDebounce = 50 * time.Millisecond
)

// ScrollController reconciles a live-updating message list with the user's
// scroll position. It never fights manual scrolling: once the user scrolls
// away from the bottom, new inbound messages stop moving the view until the
// user returns near the bottom or sends a message of their own.
type ScrollController struct {
	autoScroll bool
	lastCount  int
	lastInput  time.Time

	now func() time.Time
}

func NewScrollController() *ScrollController {
	return &ScrollController{
		autoScroll: true,
		now:        time.Now,
	}
}

// OnSnapshot decides the scroll action for one message-list emission.
// The viewer's own new message always forces the bottom into view, animation
// skipped so the echo appears instantly. Inbound growth scrolls smoothly, but
// only while the user is pinned to the bottom. A non-growing emission (a
// read-flag update re-rendering content) re-pins without animation.
func (c *ScrollController) OnSnapshot(messages []*entity.Message, viewerID string) ScrollAction {
	count := len(messages)
	grew := count > c.lastCount
	c.lastCount = count

	if count == 0 {
		return ScrollNone
	}

	if grew {
		if messages[count-1].Sender == viewerID {
			return ScrollJump
		}
		if c.autoScroll {
			return ScrollAnimate
		}
		return ScrollNone
	}

	if c.autoScroll {
		return ScrollJump
	}
	return ScrollNone
}

// OnUserScroll records a manual scroll input and recomputes whether the view
// is near enough to the bottom to keep auto-scrolling. offset is the current
// scroll position, viewport the visible height, extent the full content
// height. Inputs arriving inside the debounce interval are discarded.
func (c *ScrollController) OnUserScroll(offset, viewport, extent float64) {
	now := c.now()
	if now.Sub(c.lastInput) < scrollDebounce {
		return
	}
	c.lastInput = now

	c.autoScroll = extent-offset-viewport < nearBottomThreshold
}

// OnSend pins the view to the bottom before the send resolves, so the local
// echo always scrolls into view even if the user had scrolled away.
func (c *ScrollController) OnSend() {
	c.autoScroll = true
}

func (c *ScrollController) AutoScroll() bool {
	return c.autoScroll
}
