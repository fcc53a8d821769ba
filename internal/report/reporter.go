// Progress and preview notifications emitted by long-running stacking stages
package report

import (
	"image"
	"sync"
	"sync/atomic"
)

// Reporter receives one-way notifications from a stacking run. Implementations
// must return quickly; the worker never waits for an acknowledgement.
type Reporter interface {
	// OnProgress reports value out of max for the phase named by label.
	OnProgress(label string, value, max int)

	// OnPreview hands over an intermediate image. The receiver owns it.
	OnPreview(preview image.Image, grayscale bool)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) OnProgress(string, int, int)   {}
func (Nop) OnPreview(image.Image, bool) {}

// Funcs adapts plain functions to a Reporter. Nil fields are skipped.
type Funcs struct {
	Progress func(label string, value, max int)
	Preview  func(preview image.Image, grayscale bool)
}

func (f Funcs) OnProgress(label string, value, max int) {
	if f.Progress != nil {
		f.Progress(label, value, max)
	}
}

func (f Funcs) OnPreview(preview image.Image, grayscale bool) {
	if f.Preview != nil {
		f.Preview(preview, grayscale)
	}
}

// Kind tells progress events from preview events.
type Kind int

const (
	KindProgress Kind = iota
	KindPreview
)

// Event is a single notification in message form.
type Event struct {
	Kind      Kind
	Label     string
	Value     int
	Max       int
	Image     image.Image
	Grayscale bool
}

// Channel delivers notifications as Events on a buffered channel. When the
// buffer is full the event is dropped and counted instead of blocking.
type Channel struct {
	events  chan Event
	dropped atomic.Int64
	once    sync.Once
}

func NewChannel(size int) *Channel {
	if size < 1 {
		size = 1
	}
	return &Channel{events: make(chan Event, size)}
}

func (c *Channel) Events() <-chan Event {
	return c.events
}

// Dropped returns how many events did not fit in the buffer.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Channel) OnProgress(label string, value, max int) {
	c.send(Event{Kind: KindProgress, Label: label, Value: value, Max: max})
}

func (c *Channel) OnPreview(preview image.Image, grayscale bool) {
	c.send(Event{Kind: KindPreview, Image: preview, Grayscale: grayscale})
}

func (c *Channel) send(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
	}
}

// Close closes the event channel. Call it only after the run has finished.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.events) })
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OnProgress(label string, value, max int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: KindProgress, Label: label, Value: value, Max: max})
}

func (r *Recorder) OnPreview(preview image.Image, grayscale bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: KindPreview, Image: preview, Grayscale: grayscale})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Progress returns the recorded progress events carrying label, in order.
func (r *Recorder) Progress(label string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == KindProgress && ev.Label == label {
			out = append(out, ev)
		}
	}
	return out
}

// Previews returns the recorded preview events, in order.
func (r *Recorder) Previews() []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == KindPreview {
			out = append(out, ev)
		}
	}
	return out
}
