package offerlist

import (
	"sync/atomic"
)

// matchLock is the scoped reentrancy guard held for the duration of a
// matching walk. A concurrent entry is rejected outright, never queued.
type matchLock struct {
	busy atomic.Bool
}

func (l *matchLock) acquire() bool {
	return l.busy.CompareAndSwap(false, true)
}

func (l *matchLock) release() {
	l.busy.Store(false)
}

// Locked reports whether a matching walk is in progress.
func (l *matchLock) Locked() bool {
	return l.busy.Load()
}
