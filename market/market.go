package market

import (
	"context"

	"code.tidebook.io/tidebook/blockwatch"
	"code.tidebook.io/tidebook/broker"
	"code.tidebook.io/tidebook/events"
	"code.tidebook.io/tidebook/execution"
	"code.tidebook.io/tidebook/logging"
	"code.tidebook.io/tidebook/offerlist"
	"code.tidebook.io/tidebook/provision"
	"code.tidebook.io/tidebook/semibook"
	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"
)

// slippageDenominator scales slippage, expressed in basis points.
const slippageDenominator = 10_000

// Broker is the subset of the event broker the market needs.
type Broker interface {
	Send(event events.Event)
	Subscribe(s broker.Subscriber) int
	Unsubscribe(id int)
}

// Market is the facade over one pair: both offer lists, the order
// driver, the off-engine book caches and the height scheduler, glued to
// a shared provision ledger and event broker.
type Market struct {
	log  *logging.Logger
	cfg  Config
	pair types.Pair

	ledger  *provision.Engine
	broker  Broker
	asks    *offerlist.OfferList
	bids    *offerlist.OfferList
	exec    *execution.Engine
	watcher *blockwatch.Watcher

	askCache *semibook.Semibook
	bidCache *semibook.Semibook
}

// New assembles a market for the pair. The caches are created but not
// started, call StartCaches once the initial book state is in place.
func New(
	log *logging.Logger,
	cfg Config,
	pair types.Pair,
	conf types.Config,
	ledger *provision.Engine,
	bkr Broker,
	exec *execution.Engine,
	watcher *blockwatch.Watcher,
	cacheCfg semibook.Config,
) *Market {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())
	m := &Market{
		log:     log,
		cfg:     cfg,
		pair:    pair,
		ledger:  ledger,
		broker:  bkr,
		exec:    exec,
		watcher: watcher,
	}
	listCfg := offerlist.NewDefaultConfig()
	m.asks = offerlist.New(log, listCfg, pair, types.SideAsk, conf, ledger, bkr)
	m.bids = offerlist.New(log, listCfg, pair, types.SideBid, conf, ledger, bkr)
	m.askCache = semibook.New(log, cacheCfg, m, pair, types.SideAsk)
	m.bidCache = semibook.New(log, cacheCfg, m, pair, types.SideBid)
	return m
}

// Pair returns the market's pair.
func (m *Market) Pair() types.Pair {
	return m.pair
}

// List returns the offer list of the given side.
func (m *Market) List(side types.Side) *offerlist.OfferList {
	if side == types.SideAsk {
		return m.asks
	}
	return m.bids
}

// Cache returns the book cache of the given side.
func (m *Market) Cache(side types.Side) *semibook.Semibook {
	if side == types.SideAsk {
		return m.askCache
	}
	return m.bidCache
}

// BeginBlock advances both lists to the given height.
func (m *Market) BeginBlock(height uint64) {
	m.asks.BeginBlock(height)
	m.bids.BeginBlock(height)
}

// ReportHeight feeds one height confirmation to the scheduler and
// returns the settled height after it.
func (m *Market) ReportHeight(height uint64) uint64 {
	return m.watcher.IncreaseCount(height)
}

// AfterBlock returns a channel delivering the settled height once the
// given height settles.
func (m *Market) AfterBlock(height uint64) <-chan uint64 {
	return m.watcher.AfterHeight(height)
}

// StartCaches snapshots both book sides into their caches and wires
// them to the event stream.
func (m *Market) StartCaches(ctx context.Context) error {
	for _, c := range []*semibook.Semibook{m.askCache, m.bidCache} {
		if err := c.Start(ctx); err != nil {
			return err
		}
		m.broker.Subscribe(newCacheSub(ctx, c, m.cfg.SubscriberBuffer))
	}
	return nil
}

// Config implements the cache's chain source on top of the in-process
// engine.
func (m *Market) Config(_ context.Context, pair types.Pair) (types.Config, error) {
	if pair != m.pair {
		return types.Config{}, types.ErrInactivePair
	}
	return m.asks.Config(), nil
}

// BookPrefix implements the cache's chain source on top of the
// in-process engine.
func (m *Market) BookPrefix(_ context.Context, pair types.Pair, side types.Side, maxOffers int) ([]*types.Offer, uint64, error) {
	if pair != m.pair {
		return nil, 0, types.ErrInactivePair
	}
	list := m.List(side)
	return list.BookPrefix(maxOffers), list.Height(), nil
}

// NewOffer posts a maker offer on the given side, using the cache for a
// pivot hint when the caller has none.
func (m *Market) NewOffer(ctx context.Context, side types.Side, owner string, wants, gives *num.Uint, gasreq uint64, gasprice *num.Uint, pivot uint64) (uint64, error) {
	if pivot == types.NoID && m.Cache(side).Status() == semibook.StatusLive {
		p, err := m.Cache(side).PivotID(ctx, wants, gives)
		if err != nil {
			return types.NoID, err
		}
		pivot = p
	}
	return m.List(side).Insert(ctx, owner, wants, gives, gasreq, gasprice, pivot)
}

// UpdateOffer changes a live offer's terms.
func (m *Market) UpdateOffer(ctx context.Context, side types.Side, owner string, id uint64, wants, gives *num.Uint, gasreq uint64, gasprice *num.Uint, pivot uint64) error {
	return m.List(side).Update(ctx, owner, id, wants, gives, gasreq, gasprice, pivot)
}

// RetractOffer removes a live offer, optionally returning the bonded
// provision to the owner.
func (m *Market) RetractOffer(ctx context.Context, side types.Side, owner string, id uint64, returnProvision bool) (*num.Uint, error) {
	return m.List(side).Remove(ctx, owner, id, returnProvision)
}

// MarketOrder executes a taker order against the given side.
func (m *Market) MarketOrder(ctx context.Context, side types.Side, order *types.MarketOrder) (*types.OrderResult, error) {
	return m.exec.MarketOrder(ctx, m.List(side), order)
}

// OrderWithSlippage sources wants from the given side, bounding the
// spend at the cache's current estimate inflated by slippageBps basis
// points. ErrUnknownOffer when the cache cannot estimate the volume.
func (m *Market) OrderWithSlippage(ctx context.Context, side types.Side, taker string, wants *num.Uint, slippageBps uint64) (*types.OrderResult, error) {
	cache := m.Cache(side)
	if cache.Status() != semibook.StatusLive {
		return nil, types.ErrInactivePair
	}
	est := cache.EstimateVolume(wants, true)
	if !est.Remaining.IsZero() {
		return nil, types.ErrUnknownOffer
	}
	// the limit has to admit the marginal estimated fill, slippage gives
	// headroom on top for the book moving under us
	gives := num.UintZero().Mul(est.LimitGives, num.NewUint(slippageDenominator+slippageBps))
	gives.Div(gives, num.NewUint(slippageDenominator))
	return m.MarketOrder(ctx, side, &types.MarketOrder{
		Taker:     taker,
		Wants:     wants.Clone(),
		Gives:     gives,
		FillWants: true,
	})
}

// Subscribe attaches a subscriber to the market's event stream.
func (m *Market) Subscribe(s broker.Subscriber) int {
	return m.broker.Subscribe(s)
}

// Unsubscribe detaches a subscriber.
func (m *Market) Unsubscribe(id int) {
	m.broker.Unsubscribe(id)
}

// Once returns a promise resolved by the first event of the given type
// matching the filter. A nil filter matches everything. Drop the
// promise when the outcome no longer matters.
func (m *Market) Once(ctx context.Context, et events.Type, match func(events.Event) bool) *Promise {
	p := newPromise(ctx, m.cfg.SubscriberBuffer, []events.Type{et}, match)
	id := m.broker.Subscribe(p)
	p.unsub = func() { m.broker.Unsubscribe(id) }
	return p
}
