package semibook

import (
	"context"
	"sync"

	"code.tidebook.io/tidebook/events"
	"code.tidebook.io/tidebook/logging"
	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"
)

//go:generate go run github.com/golang/mock/mockgen -destination mocks/chain_source_mock.go -package mocks code.tidebook.io/tidebook/semibook ChainSource

// ChainSource is where the cache pulls its snapshots from. The live
// updates come over the event stream, the source is only hit on startup
// and when the cached window has to be widened.
type ChainSource interface {
	// Config returns the current configuration of the pair.
	Config(ctx context.Context, pair types.Pair) (types.Config, error)
	// BookPrefix returns the best maxOffers offers of one side in price
	// order, plus the height the snapshot was taken at. maxOffers zero
	// means the whole side.
	BookPrefix(ctx context.Context, pair types.Pair, side types.Side, maxOffers int) ([]*types.Offer, uint64, error)
}

// Status is the cache lifecycle state.
type Status int

const (
	// StatusUninitialized means Start has not been called yet.
	StatusUninitialized Status = iota
	// StatusCatchingUp means the initial snapshot is being loaded.
	StatusCatchingUp
	// StatusLive means the cache mirrors the book and applies events.
	StatusLive
	// StatusFailed means the event stream was inconsistent, the cache
	// contents can no longer be trusted.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusCatchingUp:
		return "catching-up"
	case StatusLive:
		return "live"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// VolumeEstimate is the outcome of simulating a fill over the cache.
type VolumeEstimate struct {
	// Got / Gave are what the simulated taker would receive and spend.
	Got  *num.Uint
	Gave *num.Uint
	// Remaining is the unfilled part of the target amount.
	Remaining *num.Uint
	// LimitGives is the smallest spend limit whose price admits every
	// estimated fill, including the marginal one. Only set when
	// estimating a fillWants target.
	LimitGives *num.Uint
}

// Semibook is an off-process mirror of one side of a pair's book, built
// from a snapshot and kept current by replaying the book's change
// events. The event's prev pointer is the ordering ground truth: the
// cache never re-derives positions from prices.
type Semibook struct {
	log    *logging.Logger
	cfg    Config
	source ChainSource
	pair   types.Pair
	side   types.Side

	mu     sync.RWMutex
	status Status
	err    error
	conf   types.Config

	offers map[uint64]*types.Offer
	head   uint64
	tail   uint64
	// complete is true while the cache holds the entire book side, false
	// once eviction or a gap window has cut it down to a prefix
	complete bool

	lastHeight   uint64
	lastLogIndex uint64
	haveIndex    bool
}

// New returns an uninitialized cache for one side of a pair.
func New(log *logging.Logger, cfg Config, source ChainSource, pair types.Pair, side types.Side) *Semibook {
	log = log.Named(namedLogger + "." + side.String())
	log.SetLevel(cfg.Level.Get())
	return &Semibook{
		log:    log,
		cfg:    cfg,
		source: source,
		pair:   pair,
		side:   side,
		status: StatusUninitialized,
		offers: map[uint64]*types.Offer{},
	}
}

// Start loads the pair configuration and the initial book snapshot,
// moving the cache to live. Events pushed while catching up are dropped,
// the snapshot height decides what is already reflected.
func (s *Semibook) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusLive {
		return nil
	}
	s.status = StatusCatchingUp
	s.err = nil
	if err := s.resync(ctx); err != nil {
		s.status = StatusUninitialized
		return err
	}
	s.status = StatusLive
	s.log.Info("semibook live",
		logging.String("pair", s.pair.String()),
		logging.String("side", s.side.String()),
		logging.Uint64("height", s.lastHeight),
		logging.Int("offers", len(s.offers)),
	)
	return nil
}

// resync replaces the cached window with a fresh snapshot. Caller holds
// the write lock.
func (s *Semibook) resync(ctx context.Context) error {
	conf, err := s.source.Config(ctx, s.pair)
	if err != nil {
		return err
	}
	book, height, err := s.source.BookPrefix(ctx, s.pair, s.side, s.cfg.MaxOffers)
	if err != nil {
		return err
	}
	s.conf = conf
	s.offers = make(map[uint64]*types.Offer, len(book))
	s.head, s.tail = types.NoID, types.NoID
	for _, o := range book {
		s.appendOffer(o.Clone())
	}
	s.complete = s.cfg.MaxOffers == 0 || len(book) < s.cfg.MaxOffers
	s.lastHeight = height
	s.haveIndex = false
	return nil
}

// Status returns the cache lifecycle state.
func (s *Semibook) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the fatal stream error, if any.
func (s *Semibook) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Config returns the cached pair configuration.
func (s *Semibook) Config() types.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conf.Clone()
}

// Height returns the height of the last applied event or snapshot.
func (s *Semibook) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHeight
}

// Push applies a batch of book change events, in the order given. Events
// for other pairs or sides are skipped. Events at the snapshot height
// are applied: the subscription is taken out after the snapshot is read,
// so anything delivered at that height postdates it and replaying it is
// idempotent. An event below the last seen height, or repeating a log
// index within it, poisons the cache for good.
func (s *Semibook) Push(evts ...events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusLive {
		return
	}
	for _, e := range evts {
		if !s.applies(e) {
			continue
		}
		if !s.advance(e) {
			return
		}
		switch ev := e.(type) {
		case *events.OfferWrite:
			s.applyWrite(ev.Offer())
		case *events.OfferSuccess:
			s.remove(ev.OfferID())
		case *events.OfferFail:
			s.remove(ev.OfferID())
		case *events.OfferRetract:
			s.remove(ev.OfferID())
		case *events.SetGasbase:
			s.conf.Local.OfferGasbase = ev.OfferGasbase()
		}
	}
	s.evict()
}

// Types implements the broker subscriber contract.
func (s *Semibook) Types() []events.Type {
	return []events.Type{
		events.OfferWriteEvent,
		events.OfferSuccessEvent,
		events.OfferFailEvent,
		events.OfferRetractEvent,
		events.SetGasbaseEvent,
	}
}

type pairSided interface {
	Pair() types.Pair
	Side() types.Side
}

func (s *Semibook) applies(e events.Event) bool {
	ps, ok := e.(pairSided)
	if !ok {
		return false
	}
	return ps.Pair() == s.pair && ps.Side() == s.side
}

// advance enforces the (height, logIndex) total order. Returns false
// when the stream is broken, true when the event should be applied.
func (s *Semibook) advance(e events.Event) bool {
	h, idx := e.Height(), e.LogIndex()
	if h < s.lastHeight {
		return s.fail(e)
	}
	if h == s.lastHeight && s.haveIndex && idx <= s.lastLogIndex {
		return s.fail(e)
	}
	s.lastHeight = h
	s.lastLogIndex = idx
	s.haveIndex = true
	return true
}

func (s *Semibook) fail(e events.Event) bool {
	s.status = StatusFailed
	s.err = types.ErrInconsistentEventStream
	s.log.Error("out of order event, cache poisoned",
		logging.String("type", e.Type().String()),
		logging.Uint64("height", e.Height()),
		logging.Uint64("log-index", e.LogIndex()),
		logging.Uint64("last-height", s.lastHeight),
		logging.Uint64("last-log-index", s.lastLogIndex),
	)
	return false
}

// applyWrite inserts or moves an offer to sit right after the prev the
// event carries. A prev outside the cached window means the offer is
// worse than anything cached, it is dropped and the window marked
// incomplete.
func (s *Semibook) applyWrite(o *types.Offer) {
	if old, ok := s.offers[o.ID]; ok {
		s.unlink(old)
		delete(s.offers, o.ID)
	}
	if o.Prev != types.NoID {
		if _, ok := s.offers[o.Prev]; !ok {
			s.complete = false
			return
		}
	}
	s.offers[o.ID] = o
	if o.Prev == types.NoID {
		o.Next = s.head
		if s.head != types.NoID {
			s.offers[s.head].Prev = o.ID
		}
		s.head = o.ID
		if s.tail == types.NoID {
			s.tail = o.ID
		}
		return
	}
	p := s.offers[o.Prev]
	o.Next = p.Next
	p.Next = o.ID
	if o.Next != types.NoID {
		s.offers[o.Next].Prev = o.ID
	} else {
		s.tail = o.ID
	}
}

// remove drops an offer from the cache. Unknown ids are tolerated, they
// sit below the cached window.
func (s *Semibook) remove(id uint64) {
	o, ok := s.offers[id]
	if !ok {
		return
	}
	s.unlink(o)
	delete(s.offers, id)
}

func (s *Semibook) unlink(o *types.Offer) {
	if o.Prev != types.NoID {
		s.offers[o.Prev].Next = o.Next
	} else {
		s.head = o.Next
	}
	if o.Next != types.NoID {
		s.offers[o.Next].Prev = o.Prev
	} else {
		s.tail = o.Prev
	}
	o.Prev, o.Next = types.NoID, types.NoID
}

// appendOffer links a snapshot offer at the tail, trusting snapshot
// order. Caller holds the write lock.
func (s *Semibook) appendOffer(o *types.Offer) {
	o.Prev, o.Next = s.tail, types.NoID
	s.offers[o.ID] = o
	if s.tail != types.NoID {
		s.offers[s.tail].Next = o.ID
	} else {
		s.head = o.ID
	}
	s.tail = o.ID
}

// evict trims the cache back to MaxOffers from the worst end. Caller
// holds the write lock.
func (s *Semibook) evict() {
	if s.cfg.MaxOffers <= 0 {
		return
	}
	for len(s.offers) > s.cfg.MaxOffers {
		s.remove(s.tail)
		s.complete = false
	}
}

// Size returns the number of cached offers.
func (s *Semibook) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offers)
}

// BestOffer returns a copy of the best cached offer.
func (s *Semibook) BestOffer() (*types.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.head == types.NoID {
		return nil, types.ErrUnknownOffer
	}
	return s.offers[s.head].Clone(), nil
}

// OfferByID returns a copy of the cached offer with the given id.
func (s *Semibook) OfferByID(id uint64) (*types.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	o, ok := s.offers[id]
	if !ok {
		return nil, types.ErrUnknownOffer
	}
	return o.Clone(), nil
}

// Book returns copies of the best depth cached offers in price order,
// the whole cached window when depth is zero.
func (s *Semibook) Book(depth int) []*types.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*types.Offer{}
	for id := s.head; id != types.NoID; {
		o := s.offers[id]
		out = append(out, o.Clone())
		if depth > 0 && len(out) >= depth {
			break
		}
		id = o.Next
	}
	return out
}

// EnsureDepth widens the cached window from the source when it holds
// fewer than depth offers and is known to be a strict prefix.
func (s *Semibook) EnsureDepth(ctx context.Context, depth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.complete || len(s.offers) >= depth {
		return nil
	}
	if depth > s.cfg.MaxOffers {
		s.cfg.MaxOffers = depth
	}
	return s.resync(ctx)
}

// GetPivotID returns the id of the offer a new offer with the given
// terms would be inserted after, NoID when it would become the new best.
// The hint is best effort: an incomplete window can only promise pivots
// within it.
func (s *Semibook) GetPivotID(wants, gives *num.Uint) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pivot, _ := s.pivotWalk(wants, gives)
	return pivot
}

// PivotID is GetPivotID with fetch-more: when the whole cached window is
// better than the candidate and the window is a strict prefix, it widens
// the cache from the source before settling on a pivot.
func (s *Semibook) PivotID(ctx context.Context, wants, gives *num.Uint) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return types.NoID, s.err
	}
	pivot, exhausted := s.pivotWalk(wants, gives)
	for exhausted && !s.complete {
		s.cfg.MaxOffers += s.cfg.ChunkSize
		if err := s.resync(ctx); err != nil {
			return types.NoID, err
		}
		pivot, exhausted = s.pivotWalk(wants, gives)
	}
	return pivot, nil
}

// pivotWalk finds the candidate's predecessor in the cached window,
// reporting whether the walk ran off the worst end without finding a
// worse offer. Caller holds a lock.
func (s *Semibook) pivotWalk(wants, gives *num.Uint) (uint64, bool) {
	cand := &types.Offer{Wants: wants, Gives: gives}
	pivot := types.NoID
	for id := s.head; id != types.NoID; {
		o := s.offers[id]
		if o.WorseThan(cand) {
			return pivot, false
		}
		pivot = id
		id = o.Next
	}
	return pivot, true
}

// EstimateVolume simulates filling amount against the cached window,
// ignoring price limits: with fillWants it reports what sourcing amount
// would cost, otherwise what spending amount would return.
func (s *Semibook) EstimateVolume(amount *num.Uint, fillWants bool) *VolumeEstimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	est := &VolumeEstimate{
		Got:       num.UintZero(),
		Gave:      num.UintZero(),
		Remaining: amount.Clone(),
	}
	if fillWants {
		est.LimitGives = num.UintZero()
	}
	for id := s.head; id != types.NoID && !est.Remaining.IsZero(); {
		o := s.offers[id]
		if fillWants {
			got := num.Min(o.Gives, est.Remaining).Clone()
			var gave *num.Uint
			if got.EQ(o.Gives) {
				gave = o.Wants.Clone()
			} else {
				gave = divUp(num.UintZero().Mul(got, o.Wants), o.Gives)
			}
			est.Got.AddSum(got)
			est.Gave.AddSum(gave)
			est.Remaining.Sub(est.Remaining, got)
			// the spend limit this offer's price requires for the full
			// target amount
			lim := divUp(num.UintZero().Mul(o.Wants, amount), o.Gives)
			if lim.GT(est.LimitGives) {
				est.LimitGives = lim
			}
		} else {
			gave := num.Min(o.Wants, est.Remaining).Clone()
			var got *num.Uint
			if gave.EQ(o.Wants) {
				got = o.Gives.Clone()
			} else {
				got = num.UintZero().Div(num.UintZero().Mul(gave, o.Gives), o.Wants)
			}
			est.Got.AddSum(got)
			est.Gave.AddSum(gave)
			est.Remaining.Sub(est.Remaining, gave)
		}
		id = o.Next
	}
	return est
}

func divUp(x, y *num.Uint) *num.Uint {
	den, _ := num.UintZero().Delta(y, num.NewUint(1))
	return num.UintZero().Div(num.UintZero().Add(x, den), y)
}
