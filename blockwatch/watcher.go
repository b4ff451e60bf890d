package blockwatch

import (
	"sync"

	"github.com/google/btree"

	"code.tidebook.io/tidebook/logging"
)

type pendingHeight struct {
	height uint64
	count  uint64
}

type heightWaiter struct {
	height uint64
	chans  []chan uint64
}

// Watcher settles block heights by counting independent confirmations:
// a height reported Threshold times is settled, together with every
// height below it. Counts only ever grow, a height never unsettles.
type Watcher struct {
	log       *logging.Logger
	threshold uint64

	mu      sync.Mutex
	pending *btree.BTreeG[*pendingHeight]
	waiters *btree.BTreeG[*heightWaiter]
	settled uint64
	started bool
}

// New returns a watcher with nothing settled yet.
func New(log *logging.Logger, cfg Config) *Watcher {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 1
	}
	return &Watcher{
		log:       log,
		threshold: threshold,
		pending: btree.NewG(2, func(a, b *pendingHeight) bool {
			return a.height < b.height
		}),
		waiters: btree.NewG(2, func(a, b *heightWaiter) bool {
			return a.height < b.height
		}),
	}
}

// IncreaseCount records one more confirmation of the given height.
// Returns the settled height after the update.
func (w *Watcher) IncreaseCount(height uint64) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started && height <= w.settled {
		// already settled, nothing to count
		return w.settled
	}
	ph, ok := w.pending.Get(&pendingHeight{height: height})
	if !ok {
		ph = &pendingHeight{height: height}
		w.pending.ReplaceOrInsert(ph)
	}
	ph.count++
	if ph.count >= w.threshold {
		w.settle(height)
	}
	return w.settled
}

// SettledHeight returns the highest settled height and whether any
// height settled yet.
func (w *Watcher) SettledHeight() (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settled, w.started
}

// AfterHeight returns a channel that delivers the settled height once
// the given height settles, then closes. A height already settled
// delivers immediately.
func (w *Watcher) AfterHeight(height uint64) <-chan uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan uint64, 1)
	if w.started && height <= w.settled {
		ch <- w.settled
		close(ch)
		return ch
	}
	hw, ok := w.waiters.Get(&heightWaiter{height: height})
	if !ok {
		hw = &heightWaiter{height: height}
		w.waiters.ReplaceOrInsert(hw)
	}
	hw.chans = append(hw.chans, ch)
	return ch
}

// settle advances the settled height, fires every waiter at or below it
// and drops the bookkeeping for settled heights. Caller holds the lock.
func (w *Watcher) settle(height uint64) {
	w.settled = height
	w.started = true
	if w.log.GetLevel() == logging.DebugLevel {
		w.log.Debug("height settled", logging.Uint64("height", height))
	}

	// everything at or below the settled height is done
	done := make([]*pendingHeight, 0, 4)
	w.pending.AscendLessThan(&pendingHeight{height: height + 1}, func(ph *pendingHeight) bool {
		done = append(done, ph)
		return true
	})
	for _, ph := range done {
		w.pending.Delete(ph)
	}

	fired := make([]*heightWaiter, 0, 4)
	w.waiters.AscendLessThan(&heightWaiter{height: height + 1}, func(hw *heightWaiter) bool {
		fired = append(fired, hw)
		return true
	})
	for _, hw := range fired {
		for _, ch := range hw.chans {
			ch <- height
			close(ch)
		}
		w.waiters.Delete(hw)
	}
}
