package viewport

import (
	"context"
	"sync"
)

// PointerKind distinguishes pointer events delivered during a drag.
type PointerKind int

const (
	PointerMove PointerKind = iota
	PointerUp
	PointerCancel
)

func (k PointerKind) String() string {
	switch k {
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	case PointerCancel:
		return "cancel"
	}
	return "unknown"
}

// PointerEvent is a pointer position in screen pixels.
type PointerEvent struct {
	Kind PointerKind
	Y    float64
}

// PointerSource delivers pointer events to subscribers until the returned
// unsubscribe function is called. Handlers may call unsubscribe.
type PointerSource interface {
	Subscribe(handler func(PointerEvent)) (unsubscribe func())
}

// Drag is an in-progress scrollbar drag. It holds exactly one pointer
// subscription, released on pointer up or cancel, on [Drag.End], or when the
// context passed to [BeginDrag] is done.
type Drag struct {
	apply func(ratio float64)

	mu        sync.Mutex
	metrics   VerticalMetrics
	lastY     float64
	scrollPos float64
	ended     bool
	unsub     func()
	done      chan struct{}
}

// BeginDrag starts a drag at pointer position startY. Each move converts the
// pointer delta into a content scroll delta, clamps it to [0, MaxScroll] and
// reports the new ratio through apply.
func BeginDrag(ctx context.Context, src PointerSource, startY float64, m VerticalMetrics, apply func(ratio float64)) *Drag {
	d := &Drag{
		apply:     apply,
		metrics:   m,
		lastY:     startY,
		scrollPos: m.ScrollPos,
		done:      make(chan struct{}),
	}

	unsub := src.Subscribe(d.handle)

	d.mu.Lock()
	if d.ended {
		d.mu.Unlock()
		unsub()
		return d
	}
	d.unsub = unsub
	d.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				d.End()
			case <-d.done:
			}
		}()
	}
	return d
}

func (d *Drag) handle(ev PointerEvent) {
	switch ev.Kind {
	case PointerMove:
		if ratio, ok := d.move(ev.Y); ok && d.apply != nil {
			d.apply(ratio)
		}
	case PointerUp, PointerCancel:
		d.End()
	}
}

func (d *Drag) move(y float64) (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ended {
		return 0, false
	}
	delta := y - d.lastY
	d.lastY = y
	if !d.metrics.Scrollable {
		return 0, false
	}
	d.scrollPos = clamp(d.scrollPos+delta*d.metrics.TrackScale(), 0, d.metrics.MaxScroll)
	return d.metrics.RatioForScroll(d.scrollPos), true
}

// Update replaces the geometry the drag converts against, for example after
// a refresh changed the content height. The scroll position is re-derived
// from the new metrics.
func (d *Drag) Update(m VerticalMetrics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = m
	d.scrollPos = m.ScrollPos
}

// End releases the pointer subscription. It is safe to call more than once.
func (d *Drag) End() {
	d.mu.Lock()
	if d.ended {
		d.mu.Unlock()
		return
	}
	d.ended = true
	unsub := d.unsub
	d.unsub = nil
	d.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	close(d.done)
}

// Done is closed once the drag has ended.
func (d *Drag) Done() <-chan struct{} { return d.done }

// Active reports whether the drag still holds its subscription.
func (d *Drag) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.ended
}

// ScrollPos returns the content scroll position the drag has reached.
func (d *Drag) ScrollPos() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollPos
}
