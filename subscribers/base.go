package subscribers

import (
	"context"
	"sync"

	"code.tidebook.io/tidebook/events"
)

// Base covers the broker-facing plumbing every subscriber shares: the
// event channel, pause/resume signalling and shutdown.
type Base struct {
	ctx     context.Context
	cfunc   context.CancelFunc
	sCh     chan struct{}
	ch      chan []events.Event
	ack     bool
	mu      sync.Mutex
	running bool
	id      int
}

func NewBase(ctx context.Context, buf int, ack bool) *Base {
	ctx, cfunc := context.WithCancel(ctx)
	b := &Base{
		ctx:     ctx,
		cfunc:   cfunc,
		sCh:     make(chan struct{}),
		ch:      make(chan []events.Event, buf),
		ack:     ack,
		running: !ack, // the implementation is expected to start a routine asap
	}
	if b.ack {
		go b.cleanup()
	}
	return b
}

func (b *Base) cleanup() {
	<-b.ctx.Done()
	b.Halt()
}

// Ack returns whether or not this is a synchronous/async subscriber.
func (b *Base) Ack() bool {
	return b.ack
}

// Pause the current subscriber, it will not receive events from the channel.
func (b *Base) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		b.running = false
		close(b.sCh)
	}
}

// Resume unpauses the subscriber.
func (b *Base) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		b.sCh = make(chan struct{})
		b.running = true
	}
}

func (b *Base) isRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// C returns the event channel for optional subscribers.
func (b *Base) C() chan<- []events.Event {
	return b.ch
}

// Recv returns the read end of the event channel, for the owning loop.
func (b *Base) Recv() <-chan []events.Event {
	return b.ch
}

// Ctx exposes the subscriber context to the owning loop.
func (b *Base) Ctx() context.Context {
	return b.ctx
}

// Closed indicates to the broker that the subscriber is closed for business.
func (b *Base) Closed() <-chan struct{} {
	return b.ctx.Done()
}

// Skip lets the broker know that the subscriber is not receiving events.
func (b *Base) Skip() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sCh
}

// Halt is called on shutdown, cancels the subscriber context and closes
// the skip channel.
func (b *Base) Halt() {
	b.cfunc()
	b.Pause()
}

// SetID sets the ID (exposed only to broker).
func (b *Base) SetID(id int) {
	b.id = id
}

// ID returns the subscriber ID.
func (b *Base) ID() int {
	return b.id
}
