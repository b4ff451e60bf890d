package market

import (
	"context"
	"sync"

	"code.tidebook.io/tidebook/events"
	"code.tidebook.io/tidebook/semibook"
	"code.tidebook.io/tidebook/subscribers"
)

// Promise is a one-shot event subscription: the first matching event is
// delivered on Done and the subscription torn down. Drop tears it down
// without a delivery.
type Promise struct {
	*subscribers.Base
	types []events.Type
	match func(events.Event) bool
	out   chan events.Event
	once  sync.Once
	unsub func()
}

func newPromise(ctx context.Context, buf int, types []events.Type, match func(events.Event) bool) *Promise {
	p := &Promise{
		Base:  subscribers.NewBase(ctx, buf, false),
		types: types,
		match: match,
		out:   make(chan events.Event, 1),
	}
	go p.loop()
	return p
}

func (p *Promise) loop() {
	for {
		select {
		case <-p.Ctx().Done():
			p.resolve(nil)
			return
		case evts, ok := <-p.Recv():
			if !ok {
				p.resolve(nil)
				return
			}
			p.Push(evts...)
		}
	}
}

// Push feeds events into the promise, resolving it on the first match.
func (p *Promise) Push(evts ...events.Event) {
	for _, e := range evts {
		if p.match != nil && !p.match(e) {
			continue
		}
		p.resolve(e)
		return
	}
}

// Types implements the broker subscriber contract.
func (p *Promise) Types() []events.Type {
	return p.types
}

// Done delivers the matching event, the channel closes without a value
// when the promise was dropped first.
func (p *Promise) Done() <-chan events.Event {
	return p.out
}

// Drop abandons the promise and detaches it from the event stream.
func (p *Promise) Drop() {
	p.resolve(nil)
}

func (p *Promise) resolve(e events.Event) {
	p.once.Do(func() {
		if e != nil {
			p.out <- e
		}
		close(p.out)
		if p.unsub != nil {
			p.unsub()
		}
		p.Halt()
	})
}

// cacheSub bridges the broker's channel subscriber contract to a book
// cache's Push.
type cacheSub struct {
	*subscribers.Base
	book *semibook.Semibook
}

func newCacheSub(ctx context.Context, book *semibook.Semibook, buf int) *cacheSub {
	return &cacheSub{
		// acked delivery: the broker pushes straight into the cache in
		// emission order, a buffered channel would lose that ordering
		Base: subscribers.NewBase(ctx, buf, true),
		book: book,
	}
}

func (s *cacheSub) Push(evts ...events.Event) {
	s.book.Push(evts...)
}

func (s *cacheSub) Types() []events.Type {
	return s.book.Types()
}
