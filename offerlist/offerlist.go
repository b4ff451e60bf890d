package offerlist

import (
	"context"

	"code.tidebook.io/tidebook/events"
	"code.tidebook.io/tidebook/logging"
	"code.tidebook.io/tidebook/metrics"
	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"
)

// Broker is the event outlet the engine writes its change events to.
type Broker interface {
	Send(event events.Event)
}

// Ledger is the provision ledger the engine bonds offers against.
type Ledger interface {
	Credit(owner string, amount *num.Uint)
	Debit(owner string, amount *num.Uint) error
	MissingProvision(owner string, required *num.Uint) *num.Uint
	CreditToken(owner, asset string, amount *num.Uint)
}

// TransferAgent moves settlement funds between parties. Optional: when
// absent, or when a transfer fails, the amount is credited to the
// receiving party's token credit balance on the ledger instead.
type TransferAgent interface {
	Transfer(from, to, asset string, amount *num.Uint) error
}

// WalkParams parameterize one matching walk over the list.
type WalkParams struct {
	Taker string
	// Wants/Gives are the taker's targets in the side's outbound and
	// inbound assets, their ratio is the taker's price limit.
	Wants     *num.Uint
	Gives     *num.Uint
	FillWants bool
	// GasBudget bounds the total gas the walk may burn, offers beyond it
	// are left unmatched.
	GasBudget uint64
}

// WalkResult is the raw outcome of a matching walk, before fees.
type WalkResult struct {
	Fills   []*types.Fill
	Got     *num.Uint
	Gave    *num.Uint
	Penalty *num.Uint
	// Partial is true iff the fill target was not reached.
	Partial bool
}

// OfferList is one side of one pair: a doubly linked, strictly price
// ordered list of offers embedded in an arena keyed by offer id, plus the
// bonding bookkeeping tying every offer to its owner's provision.
type OfferList struct {
	log  *logging.Logger
	pair types.Pair
	side types.Side
	conf types.Config

	ledger   Ledger
	broker   Broker
	transfer TransferAgent

	// arena: id -> record, Prev/Next ids, NoID terminates
	offers map[uint64]*types.Offer
	head   uint64
	tail   uint64
	lastID uint64

	// bonded provision held per offer id, retained for dead ids retracted
	// without deprovisioning
	bonded map[uint64]*num.Uint

	feePool    *num.Uint
	fulfillers fulfillerRegistry

	lock     matchLock
	height   uint64
	logIndex uint64
}

// New returns an empty offer list for one side of a pair.
func New(log *logging.Logger, cfg Config, pair types.Pair, side types.Side, conf types.Config, ledger Ledger, broker Broker) *OfferList {
	log = log.Named(namedLogger + "." + side.String())
	log.SetLevel(cfg.Level.Get())
	return &OfferList{
		log:     log,
		pair:    pair,
		side:    side,
		conf:    conf.Clone(),
		ledger:  ledger,
		broker:  broker,
		offers:  map[uint64]*types.Offer{},
		bonded:  map[uint64]*num.Uint{},
		feePool: num.UintZero(),
	}
}

// SetTransferAgent installs an optional settlement transfer agent.
func (l *OfferList) SetTransferAgent(t TransferAgent) {
	l.transfer = t
}

// BeginBlock advances the logical height events are stamped with and
// resets the per height log index.
func (l *OfferList) BeginBlock(height uint64) {
	l.height = height
	l.logIndex = 0
}

// Height returns the current logical height.
func (l *OfferList) Height() uint64 {
	return l.height
}

func (l *OfferList) nextLogIndex() uint64 {
	idx := l.logIndex
	l.logIndex++
	return idx
}

// Config returns a copy of the list's configuration.
func (l *OfferList) Config() types.Config {
	return l.conf.Clone()
}

// SetOfferGasbase updates the gas overhead charged per offer and emits
// the corresponding change event.
func (l *OfferList) SetOfferGasbase(ctx context.Context, gasbase uint64) {
	l.conf.Local.OfferGasbase = gasbase
	l.broker.Send(events.NewSetGasbaseEvent(ctx, l.height, l.nextLogIndex(), l.pair, l.side, gasbase))
}

// SetActive toggles whether insertions and walks are allowed.
func (l *OfferList) SetActive(active bool) {
	l.conf.Local.Active = active
}

// SetDensity updates the minimum gives/gasreq ratio for new offers.
func (l *OfferList) SetDensity(density num.Decimal) {
	l.conf.Local.Density = density
}

// SetDead flips the global kill switch: a dead book rejects every
// mutation and walk, retraction stays possible.
func (l *OfferList) SetDead(dead bool) {
	l.conf.Global.Dead = dead
}

// SetGasPrice updates the pair level gas price floor.
func (l *OfferList) SetGasPrice(p *num.Uint) {
	l.conf.Global.GasPrice = p.Clone()
}

// Locked reports whether a matching walk is in progress.
func (l *OfferList) Locked() bool {
	return l.lock.Locked()
}

// Len returns the number of live offers.
func (l *OfferList) Len() int {
	return len(l.offers)
}

// FeePool returns the fees accumulated by this list.
func (l *OfferList) FeePool() *num.Uint {
	return l.feePool.Clone()
}

// CreditFee adds a taken fee to the list's fee pool.
func (l *OfferList) CreditFee(amount *num.Uint) {
	l.feePool.AddSum(amount)
}

// BestOfferID returns the id of the best priced live offer, NoID when the
// book side is empty.
func (l *OfferList) BestOfferID() uint64 {
	return l.head
}

// OfferByID returns a copy of the live offer with the given id.
func (l *OfferList) OfferByID(id uint64) (*types.Offer, error) {
	o, ok := l.offers[id]
	if !ok {
		return nil, types.ErrUnknownOffer
	}
	return o.Clone(), nil
}

// BookPrefix returns copies of the best maxOffers live offers in price
// order, the whole book when maxOffers is zero.
func (l *OfferList) BookPrefix(maxOffers int) []*types.Offer {
	out := make([]*types.Offer, 0, maxOffers)
	for id := l.head; id != types.NoID; {
		o := l.offers[id]
		out = append(out, o.Clone())
		if maxOffers > 0 && len(out) >= maxOffers {
			break
		}
		id = o.Next
	}
	return out
}

// Insert validates, bonds and links a new offer, returning its id. The
// pivot is a hint only: the engine walks from it toward the correct
// position, so a near-correct pivot keeps insertion O(distance). On any
// failure no state changes.
func (l *OfferList) Insert(ctx context.Context, owner string, wants, gives *num.Uint, gasreq uint64, gasprice *num.Uint, pivot uint64) (uint64, error) {
	if l.conf.Global.Dead || !l.conf.Local.Active {
		return types.NoID, types.ErrInactivePair
	}
	if wants == nil || gives == nil || wants.IsZero() {
		return types.NoID, types.ErrInvalidOrder
	}

	// the offer's gas price is floored at the pair's current one
	gp := num.Max(gasprice, l.conf.Global.GasPrice).Clone()
	o := &types.Offer{
		Owner:    owner,
		Wants:    wants.Clone(),
		Gives:    gives.Clone(),
		GasReq:   gasreq,
		GasPrice: gp,
	}

	if err := l.checkDensity(o); err != nil {
		metrics.OfferCounterInc(l.pair.String(), "false")
		return types.NoID, err
	}
	required := o.RequiredBounty(l.conf.Local.OfferGasbase)
	if !l.ledger.MissingProvision(owner, required).IsZero() {
		metrics.OfferCounterInc(l.pair.String(), "false")
		return types.NoID, types.ErrInsufficientProvision
	}
	// all checks passed, the debit cannot fail: the ledger mutation and
	// the insertion below form one atomic step
	if err := l.ledger.Debit(owner, required); err != nil {
		return types.NoID, err
	}

	l.lastID++
	o.ID = l.lastID
	l.bonded[o.ID] = required
	prev := l.findPrev(o, pivot)
	l.link(o, prev)

	metrics.OfferCounterInc(l.pair.String(), "true")
	metrics.OfferGaugeAdd(1, l.pair.String(), l.side.String())
	if l.log.GetLevel() == logging.DebugLevel {
		l.log.Debug("offer inserted",
			logging.Uint64("id", o.ID),
			logging.Stringer("wants", o.Wants),
			logging.Stringer("gives", o.Gives),
			logging.Uint64("prev", o.Prev),
		)
	}
	l.broker.Send(events.NewOfferWriteEvent(ctx, l.height, l.nextLogIndex(), l.pair, l.side, o))
	return o.ID, nil
}

// Update changes the terms of a live offer in place, re-splicing it when
// the price changed. Only the recorded owner may update. The bond is
// topped up or partially refunded to follow the new terms.
func (l *OfferList) Update(ctx context.Context, owner string, id uint64, wants, gives *num.Uint, gasreq uint64, gasprice *num.Uint, pivot uint64) error {
	if l.conf.Global.Dead || !l.conf.Local.Active {
		return types.ErrInactivePair
	}
	o, ok := l.offers[id]
	if !ok {
		return types.ErrUnknownOffer
	}
	if o.Owner != owner {
		return types.ErrUnauthorized
	}
	if wants == nil || gives == nil || wants.IsZero() {
		return types.ErrInvalidOrder
	}

	gp := num.Max(gasprice, l.conf.Global.GasPrice).Clone()
	upd := &types.Offer{
		ID:       id,
		Owner:    owner,
		Wants:    wants.Clone(),
		Gives:    gives.Clone(),
		GasReq:   gasreq,
		GasPrice: gp,
	}
	if err := l.checkDensity(upd); err != nil {
		return err
	}

	// bond follows the new terms: top up from the free balance, or give
	// back what is no longer needed
	required := upd.RequiredBounty(l.conf.Local.OfferGasbase)
	held := l.bonded[id]
	if required.GT(held) {
		topUp := num.UintZero().Sub(required, held)
		if !l.ledger.MissingProvision(owner, topUp).IsZero() {
			return types.ErrInsufficientProvision
		}
		if err := l.ledger.Debit(owner, topUp); err != nil {
			return err
		}
	} else if required.LT(held) {
		l.ledger.Credit(owner, num.UintZero().Sub(held, required))
	}
	l.bonded[id] = required

	repositioned := upd.BetterThan(o) || upd.WorseThan(o)
	oldPrev := o.Prev
	l.unlink(o)
	*o = *upd
	prev := oldPrev
	if repositioned {
		// price changed, re-search from the caller's hint
		if pivot == id {
			pivot = types.NoID
		}
		prev = l.findPrev(o, pivot)
	}
	l.link(o, prev)

	l.broker.Send(events.NewOfferWriteEvent(ctx, l.height, l.nextLogIndex(), l.pair, l.side, o))
	return nil
}

// Remove retracts a live offer. With returnProvision the bond is credited
// back to the owner and the refund returned, otherwise the bond stays
// attached to the now dead id. Either way the id can never be matched
// again.
func (l *OfferList) Remove(ctx context.Context, owner string, id uint64, returnProvision bool) (*num.Uint, error) {
	o, ok := l.offers[id]
	if !ok {
		return nil, types.ErrUnknownOffer
	}
	if o.Owner != owner {
		return nil, types.ErrUnauthorized
	}

	l.unlink(o)
	delete(l.offers, id)
	metrics.OfferGaugeAdd(-1, l.pair.String(), l.side.String())

	refund := num.UintZero()
	if returnProvision {
		refund = l.bonded[id].Clone()
		l.ledger.Credit(owner, refund)
		delete(l.bonded, id)
	}
	l.broker.Send(events.NewOfferRetractEvent(ctx, l.height, l.nextLogIndex(), l.pair, l.side, id))
	return refund, nil
}

// Walk runs a matching walk from the best offer, attempting to execute
// each offer for a bounded sub amount. A failing offer degrades to a
// bounty payment and the walk continues, it never aborts the taker's
// order. Returns ErrReentrantMatch when a walk is already in progress.
func (l *OfferList) Walk(ctx context.Context, params WalkParams) (*WalkResult, error) {
	if !l.lock.acquire() {
		return nil, types.ErrReentrantMatch
	}
	defer l.lock.release()

	if l.conf.Global.Dead || !l.conf.Local.Active {
		return nil, types.ErrInactivePair
	}
	timer := metrics.NewTimeCounter(l.pair.String(), "offerlist", "Walk")
	defer timer.EngineTimeCounterAdd()

	res := &WalkResult{
		Got:     num.UintZero(),
		Gave:    num.UintZero(),
		Penalty: num.UintZero(),
	}
	var (
		residWants = params.Wants.Clone()
		residGives = params.Gives.Clone()
		gasLeft    = params.GasBudget
	)

	for id := l.head; id != types.NoID; {
		o := l.offers[id]
		next := o.Next

		// price limit: offer.wants * order.wants <= offer.gives * order.gives,
		// cross multiplied to avoid rounding bias
		lhs := num.UintZero().Mul(o.Wants, params.Wants)
		rhs := num.UintZero().Mul(o.Gives, params.Gives)
		if lhs.GT(rhs) {
			break
		}
		if o.GasReq > gasLeft {
			// gas budget exhausted, remaining offers are left unmatched
			break
		}

		got, gave := takeAmounts(o, residWants, residGives, params.FillWants)
		if got.IsZero() && gave.IsZero() {
			break
		}

		fres := l.fulfil(ctx, o, got, gave, minGas(o.GasReq, gasLeft))
		gasLeft -= fres.GasUsed

		if fres.Reason != types.ExecutionOK {
			bounty := l.chargeBounty(o, params.Taker, fres.GasUsed)
			res.Penalty.AddSum(bounty)
			l.broker.Send(events.NewOfferFailEvent(ctx, l.height, l.nextLogIndex(), l.pair, l.side, id, params.Taker, got, gave, fres.Reason))
			id = next
			continue
		}

		l.settle(o.Owner, params.Taker, gave)
		res.Fills = append(res.Fills, &types.Fill{
			OfferID: id,
			Maker:   o.Owner,
			Got:     got.Clone(),
			Gave:    gave.Clone(),
		})
		res.Got.AddSum(got)
		res.Gave.AddSum(gave)
		residWants, _ = num.UintZero().Delta(residWants, got)
		residGives, _ = num.UintZero().Delta(residGives, gave)

		l.broker.Send(events.NewOfferSuccessEvent(ctx, l.height, l.nextLogIndex(), l.pair, l.side, id, params.Taker, got, gave))
		l.consume(ctx, o, got, gave)

		if params.FillWants && residWants.IsZero() {
			break
		}
		if !params.FillWants && residGives.IsZero() {
			break
		}
		id = next
	}

	if params.FillWants {
		res.Partial = !residWants.IsZero()
	} else {
		res.Partial = !residGives.IsZero()
	}
	metrics.WalkCounterInc(l.pair.String(), boolLabel(res.Partial))
	return res, nil
}

// fulfil runs the offer's execution logic within its gas bound and
// normalizes the result: overruns and short deliveries become failures.
func (l *OfferList) fulfil(ctx context.Context, o *types.Offer, got, gave *num.Uint, gasLimit uint64) FulfilResult {
	fulfiller := l.fulfillerFor(o)
	fres := fulfiller.Fulfil(ctx, o.Clone(), got, gave, gasLimit)
	if fres.GasUsed > gasLimit {
		fres.GasUsed = gasLimit
		fres.Reason = types.ExecutionOutOfGas
	}
	if fres.Reason == types.ExecutionOK && (fres.Delivered == nil || fres.Delivered.LT(got)) {
		fres.Reason = types.ExecutionShortDelivery
	}
	return fres
}

// fulfillers, keyed by owner, installed by the execution layer; the
// direct fulfiller is the fallback for plain escrowed offers
var defaultFulfiller = DirectFulfiller{Gas: 1}

type fulfillerRegistry map[string]Fulfiller

func (l *OfferList) fulfillerFor(o *types.Offer) Fulfiller {
	if l.fulfillers != nil {
		if f, ok := l.fulfillers[o.Owner]; ok {
			return f
		}
	}
	return defaultFulfiller
}

// RegisterFulfiller installs custom fulfil logic for an owner's offers.
func (l *OfferList) RegisterFulfiller(owner string, f Fulfiller) {
	if l.fulfillers == nil {
		l.fulfillers = fulfillerRegistry{}
	}
	l.fulfillers[owner] = f
}

// chargeBounty pays the taker for a failing offer out of its bond:
// gasprice * (gasused + offer_gasbase), capped by what the offer bonded.
// The remainder of the bond goes back to the owner, the offer is removed.
func (l *OfferList) chargeBounty(o *types.Offer, taker string, gasUsed uint64) *num.Uint {
	held := l.bonded[o.ID]
	bounty := num.UintZero().Mul(o.GasPrice, num.NewUint(gasUsed+l.conf.Local.OfferGasbase))
	bounty = num.Min(bounty, held).Clone()
	if rem := num.UintZero().Sub(held, bounty); !rem.IsZero() {
		l.ledger.Credit(o.Owner, rem)
	}
	l.ledger.Credit(taker, bounty)
	delete(l.bonded, o.ID)

	l.unlink(o)
	delete(l.offers, o.ID)
	metrics.OfferGaugeAdd(-1, l.pair.String(), l.side.String())

	l.log.Warn("offer failed during walk, bounty charged",
		logging.Uint64("id", o.ID),
		logging.String("owner", o.Owner),
		logging.Stringer("bounty", bounty),
	)
	return bounty
}

// consume reduces an offer after a successful partial or full take. The
// residual keeps its original list position, it is deliberately not
// re-sorted: a gas saving shortcut the book's economics rely on.
func (l *OfferList) consume(ctx context.Context, o *types.Offer, got, gave *num.Uint) {
	newGives, _ := num.UintZero().Delta(o.Gives, got)
	newWants, _ := num.UintZero().Delta(o.Wants, gave)
	if newGives.IsZero() {
		l.unlink(o)
		delete(l.offers, o.ID)
		metrics.OfferGaugeAdd(-1, l.pair.String(), l.side.String())
		if held, ok := l.bonded[o.ID]; ok {
			l.ledger.Credit(o.Owner, held)
			delete(l.bonded, o.ID)
		}
		return
	}
	o.Gives = newGives
	o.Wants = newWants
	l.broker.Send(events.NewOfferWriteEvent(ctx, l.height, l.nextLogIndex(), l.pair, l.side, o))
}

// settle moves the taker's payment to the maker, through the transfer
// agent when one is installed, falling back to a ledger token credit. A
// failed transfer is logged, it never rolls back the match.
func (l *OfferList) settle(maker, taker string, gave *num.Uint) {
	asset := l.pair.InboundAsset(l.side)
	if l.transfer != nil {
		if err := l.transfer.Transfer(taker, maker, asset, gave.Clone()); err == nil {
			return
		} else {
			l.log.Error("settlement transfer failed, crediting token balance",
				logging.String("maker", maker),
				logging.String("taker", taker),
				logging.String("asset", asset),
				logging.Error(types.ErrTransferFailure),
				logging.Error(err),
			)
		}
	}
	l.ledger.CreditToken(maker, asset, gave.Clone())
}

func (l *OfferList) checkDensity(o *types.Offer) error {
	if o.PriceDensity().LessThan(l.conf.Local.Density) {
		return types.ErrBelowDensity
	}
	return nil
}

// findPrev locates the offer the new node has to be linked after, walking
// from the pivot hint toward the correct position. Equal prices keep time
// priority: the new offer goes after existing ones. Returns NoID when the
// node becomes the new best.
func (l *OfferList) findPrev(o *types.Offer, pivot uint64) uint64 {
	start := l.head
	if pivot != types.NoID {
		if _, ok := l.offers[pivot]; ok {
			start = pivot
		}
	}
	if start == types.NoID {
		return types.NoID
	}

	cur := l.offers[start]
	if !cur.WorseThan(o) {
		// pivot is at least as good: walk down until the next offer is
		// strictly worse
		prev := cur
		for prev.Next != types.NoID {
			nxt := l.offers[prev.Next]
			if nxt.WorseThan(o) {
				break
			}
			prev = nxt
		}
		return prev.ID
	}
	// pivot is too far down the book: walk back up
	for cur.Prev != types.NoID {
		p := l.offers[cur.Prev]
		if !p.WorseThan(o) {
			return p.ID
		}
		cur = p
	}
	return types.NoID
}

func (l *OfferList) link(o *types.Offer, prev uint64) {
	l.offers[o.ID] = o
	o.Prev = prev
	if prev == types.NoID {
		o.Next = l.head
		if l.head != types.NoID {
			l.offers[l.head].Prev = o.ID
		}
		l.head = o.ID
		if l.tail == types.NoID {
			l.tail = o.ID
		}
		return
	}
	p := l.offers[prev]
	o.Next = p.Next
	p.Next = o.ID
	if o.Next != types.NoID {
		l.offers[o.Next].Prev = o.ID
	} else {
		l.tail = o.ID
	}
}

func (l *OfferList) unlink(o *types.Offer) {
	if o.Prev != types.NoID {
		l.offers[o.Prev].Next = o.Next
	} else {
		l.head = o.Next
	}
	if o.Next != types.NoID {
		l.offers[o.Next].Prev = o.Prev
	} else {
		l.tail = o.Prev
	}
	o.Prev, o.Next = types.NoID, types.NoID
}

// takeAmounts computes how much of the offer the taker consumes. Rounding
// favours the maker: the taker's payment is rounded up, their receipt
// down.
func takeAmounts(o *types.Offer, residWants, residGives *num.Uint, fillWants bool) (got, gave *num.Uint) {
	if fillWants {
		got = num.Min(o.Gives, residWants).Clone()
		if got.EQ(o.Gives) {
			gave = o.Wants.Clone()
		} else {
			gave = divUp(num.UintZero().Mul(got, o.Wants), o.Gives)
		}
		return got, gave
	}
	gave = num.Min(o.Wants, residGives).Clone()
	if gave.EQ(o.Wants) {
		got = o.Gives.Clone()
	} else {
		got = num.UintZero().Div(num.UintZero().Mul(gave, o.Gives), o.Wants)
	}
	return got, gave
}

func divUp(x, y *num.Uint) *num.Uint {
	one := num.NewUint(1)
	den, _ := num.UintZero().Delta(y, one)
	return num.UintZero().Div(num.UintZero().Add(x, den), y)
}

func minGas(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
