package offerlist_test

import (
	"context"
	"testing"

	"code.tidebook.io/tidebook/events"
	"code.tidebook.io/tidebook/logging"
	"code.tidebook.io/tidebook/offerlist"
	"code.tidebook.io/tidebook/provision"
	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBroker struct {
	evts []events.Event
}

func (b *stubBroker) Send(e events.Event) {
	b.evts = append(b.evts, e)
}

func (b *stubBroker) ofType(t events.Type) []events.Event {
	out := []events.Event{}
	for _, e := range b.evts {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

type tstList struct {
	*offerlist.OfferList
	ledger *provision.Engine
	broker *stubBroker
}

func getTestList(t *testing.T) *tstList {
	t.Helper()
	log := logging.NewTestLogger()
	conf := types.Config{
		Global: types.GlobalConfig{
			GasPrice: num.NewUint(1),
			GasMax:   10_000_000,
		},
		Local: types.LocalConfig{
			Active:       true,
			Density:      num.DecimalZero(),
			OfferGasbase: 10,
		},
	}
	ledger := provision.New(log, provision.NewDefaultConfig())
	broker := &stubBroker{}
	pair := types.Pair{Base: "ETH", Quote: "DAI"}
	return &tstList{
		OfferList: offerlist.New(log, offerlist.NewDefaultConfig(), pair, types.SideAsk, conf, ledger, broker),
		ledger:    ledger,
		broker:    broker,
	}
}

func (l *tstList) fund(owner string, amount uint64) {
	l.ledger.Credit(owner, num.NewUint(amount))
}

func (l *tstList) insert(t *testing.T, owner string, wants, gives uint64) uint64 {
	t.Helper()
	id, err := l.Insert(context.Background(), owner, num.NewUint(wants), num.NewUint(gives), 100, num.NewUint(1), types.NoID)
	require.NoError(t, err)
	return id
}

func TestInsertOrdering(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)

	// same wants, higher gives is the better price
	worse := l.insert(t, "maker", 10, 10)
	better := l.insert(t, "maker", 10, 12)

	assert.Equal(t, better, l.BestOfferID())
	book := l.BookPrefix(0)
	require.Len(t, book, 2)
	assert.Equal(t, better, book[0].ID)
	assert.Equal(t, worse, book[1].ID)
	assert.Equal(t, types.NoID, book[0].Prev)
	assert.Equal(t, better, book[1].Prev)
}

func TestInsertEqualPriceKeepsTimePriority(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)

	first := l.insert(t, "maker", 10, 10)
	second := l.insert(t, "maker", 10, 10)
	third := l.insert(t, "maker", 10, 10)

	book := l.BookPrefix(0)
	require.Len(t, book, 3)
	assert.Equal(t, []uint64{first, second, third}, []uint64{book[0].ID, book[1].ID, book[2].ID})
}

func TestInsertWithPivotHint(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 100_000)

	ids := make([]uint64, 0, 5)
	for _, gives := range []uint64{50, 40, 30, 20, 10} {
		ids = append(ids, l.insert(t, "maker", 10, gives))
	}
	// lands between gives=30 and gives=20, hinted from either direction
	fromAbove, err := l.Insert(context.Background(), "maker", num.NewUint(10), num.NewUint(25), 100, num.NewUint(1), ids[1])
	require.NoError(t, err)
	fromBelow, err := l.Insert(context.Background(), "maker", num.NewUint(10), num.NewUint(24), 100, num.NewUint(1), ids[4])
	require.NoError(t, err)

	book := l.BookPrefix(0)
	gives := make([]uint64, 0, len(book))
	for _, o := range book {
		gives = append(gives, o.Gives.Uint64())
	}
	assert.Equal(t, []uint64{50, 40, 30, 25, 24, 20, 10}, gives)
	assert.Equal(t, ids[2], book[3].Prev, "hinted insert linked after gives=30")
	assert.Equal(t, fromAbove, book[4].Prev)
	_ = fromBelow
}

func TestInsertRejectsBelowDensity(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	l.SetDensity(num.MustDecimalFromString("0.5"))

	// gives/gasreq = 40/100 < 0.5
	_, err := l.Insert(context.Background(), "maker", num.NewUint(10), num.NewUint(40), 100, num.NewUint(1), types.NoID)
	assert.ErrorIs(t, err, types.ErrBelowDensity)

	// 50/100 == 0.5 is acceptable
	_, err = l.Insert(context.Background(), "maker", num.NewUint(10), num.NewUint(50), 100, num.NewUint(1), types.NoID)
	assert.NoError(t, err)
}

func TestInsertProvisionBoundary(t *testing.T) {
	l := getTestList(t)
	// required bounty = (gasreq + gasbase) * gasprice = (100 + 10) * 1
	l.fund("maker", 109)
	_, err := l.Insert(context.Background(), "maker", num.NewUint(10), num.NewUint(10), 100, num.NewUint(1), types.NoID)
	assert.ErrorIs(t, err, types.ErrInsufficientProvision)

	l.fund("maker", 1)
	_, err = l.Insert(context.Background(), "maker", num.NewUint(10), num.NewUint(10), 100, num.NewUint(1), types.NoID)
	assert.NoError(t, err)
	assert.True(t, l.ledger.Balance("maker").IsZero())
}

func TestInsertFloorsGasPrice(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	l.SetGasPrice(num.NewUint(5))

	id := l.insert(t, "maker", 10, 10)
	o, err := l.OfferByID(id)
	require.NoError(t, err)
	assert.True(t, o.GasPrice.EQUint64(5))
	// bond priced at the floored gas price
	assert.True(t, l.ledger.Balance("maker").EQUint64(10_000-(100+10)*5))
}

func TestRemoveProvisionRoundTrip(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 1_000)

	id := l.insert(t, "maker", 10, 10)
	assert.True(t, l.ledger.Balance("maker").EQUint64(1_000-110))

	refund, err := l.Remove(context.Background(), "maker", id, true)
	require.NoError(t, err)
	assert.True(t, refund.EQUint64(110))
	assert.True(t, l.ledger.Balance("maker").EQUint64(1_000))
	assert.Equal(t, 0, l.Len())

	_, err = l.OfferByID(id)
	assert.ErrorIs(t, err, types.ErrUnknownOffer)
}

func TestRemoveWithoutDeprovision(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 1_000)

	id := l.insert(t, "maker", 10, 10)
	refund, err := l.Remove(context.Background(), "maker", id, false)
	require.NoError(t, err)
	assert.True(t, refund.IsZero())
	// bond stays off the free balance until deprovisioned
	assert.True(t, l.ledger.Balance("maker").EQUint64(1_000-110))
}

func TestRemoveAuthorization(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 1_000)

	id := l.insert(t, "maker", 10, 10)
	_, err := l.Remove(context.Background(), "intruder", id, true)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = l.Remove(context.Background(), "maker", 42, true)
	assert.ErrorIs(t, err, types.ErrUnknownOffer)
}

func TestUpdateRepositionsAndAdjustsBond(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)

	a := l.insert(t, "maker", 10, 30)
	b := l.insert(t, "maker", 10, 20)
	c := l.insert(t, "maker", 10, 10)
	assert.Equal(t, a, l.BestOfferID())

	balBefore := l.ledger.Balance("maker")
	// c improves past everything, with a larger gas requirement
	err := l.Update(context.Background(), "maker", c, num.NewUint(10), num.NewUint(40), 200, num.NewUint(1), types.NoID)
	require.NoError(t, err)
	assert.Equal(t, c, l.BestOfferID())
	// bond grew by (200-100)*1
	assert.True(t, l.ledger.Balance("maker").EQ(num.UintZero().Sub(balBefore, num.NewUint(100))))

	book := l.BookPrefix(0)
	assert.Equal(t, []uint64{c, a, b}, []uint64{book[0].ID, book[1].ID, book[2].ID})
}

func TestWalkFillWantsCapsReceipt(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	l.insert(t, "maker", 10, 10)
	l.insert(t, "maker", 10, 10)

	res, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(15),
		Gives:     num.NewUint(100),
		FillWants: true,
		GasBudget: 1_000,
	})
	require.NoError(t, err)
	assert.True(t, res.Got.EQUint64(15))
	assert.False(t, res.Partial)
	require.Len(t, res.Fills, 2)
	assert.True(t, res.Fills[0].Got.EQUint64(10))
	assert.True(t, res.Fills[1].Got.EQUint64(5))
	// second offer half consumed, residual stays live
	assert.Equal(t, 1, l.Len())
}

func TestWalkFillGivesCapsSpend(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	l.insert(t, "maker", 10, 10)
	l.insert(t, "maker", 10, 10)

	res, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(14),
		Gives:     num.NewUint(14),
		FillWants: false,
		GasBudget: 1_000,
	})
	require.NoError(t, err)
	assert.True(t, res.Gave.EQUint64(14))
	assert.True(t, res.Got.EQUint64(14))
	assert.False(t, res.Partial)
}

func TestWalkRespectsPriceLimit(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	cheap := l.insert(t, "maker", 10, 20)
	dear := l.insert(t, "maker", 10, 10)

	// taker accepts at most 1:1
	res, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(50),
		Gives:     num.NewUint(50),
		FillWants: true,
		GasBudget: 1_000,
	})
	require.NoError(t, err)
	require.Len(t, res.Fills, 2)
	assert.Equal(t, cheap, res.Fills[0].OfferID)
	assert.Equal(t, dear, res.Fills[1].OfferID)
	assert.True(t, res.Partial)

	// tighten the limit below 1:2, only the cheap offer qualifies
	l.fund("maker", 10_000)
	l.insert(t, "maker", 10, 20)
	l.insert(t, "maker", 15, 20)
	res, err = l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(40),
		Gives:     num.NewUint(25),
		FillWants: true,
		GasBudget: 1_000,
	})
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	assert.True(t, res.Fills[0].Got.EQUint64(20))
}

type failingFulfiller struct {
	gas uint64
}

func (f failingFulfiller) Fulfil(_ context.Context, _ *types.Offer, _, _ *num.Uint, _ uint64) offerlist.FulfilResult {
	return offerlist.FulfilResult{
		Delivered: num.UintZero(),
		GasUsed:   f.gas,
		Reason:    types.ExecutionReverted,
	}
}

func TestWalkFailingOfferPaysBountyAndContinues(t *testing.T) {
	l := getTestList(t)
	l.fund("flaky", 10_000)
	l.fund("solid", 10_000)
	l.insert(t, "flaky", 10, 20)
	l.insert(t, "solid", 10, 10)
	l.RegisterFulfiller("flaky", failingFulfiller{gas: 50})

	res, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(10),
		Gives:     num.NewUint(100),
		FillWants: true,
		GasBudget: 1_000,
	})
	require.NoError(t, err)
	// the failing offer is skipped over, the walk still fills
	assert.True(t, res.Got.EQUint64(10))
	assert.False(t, res.Partial)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, "solid", res.Fills[0].Maker)

	// bounty = gasprice * (gasused + gasbase) = 1 * (50 + 10)
	assert.True(t, res.Penalty.EQUint64(60))
	assert.True(t, l.ledger.Balance("taker").EQUint64(60))
	// rest of the bond went back to the failing owner
	assert.True(t, l.ledger.Balance("flaky").EQUint64(10_000-60))

	fails := l.broker.ofType(events.OfferFailEvent)
	require.Len(t, fails, 1)
}

func TestWalkResidualKeepsPosition(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	best := l.insert(t, "maker", 10, 20)
	l.insert(t, "maker", 10, 18)

	res, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(5),
		Gives:     num.NewUint(100),
		FillWants: true,
		GasBudget: 1_000,
	})
	require.NoError(t, err)
	assert.True(t, res.Got.EQUint64(5))

	// partially consumed best offer stays at the head, not re-sorted
	assert.Equal(t, best, l.BestOfferID())
	o, err := l.OfferByID(best)
	require.NoError(t, err)
	assert.True(t, o.Gives.EQUint64(15))

	// the cache protocol: a success event followed by a rewrite of the
	// residual carrying the same prev
	succ := l.broker.ofType(events.OfferSuccessEvent)
	require.Len(t, succ, 1)
	writes := l.broker.ofType(events.OfferWriteEvent)
	require.NotEmpty(t, writes)
	last := writes[len(writes)-1].(*events.OfferWrite)
	assert.Equal(t, best, last.Offer().ID)
	assert.Equal(t, types.NoID, last.Offer().Prev)
	assert.True(t, last.LogIndex() > succ[0].LogIndex())
}

func TestWalkFullConsumptionRefundsBond(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 1_000)
	l.insert(t, "maker", 10, 10)
	assert.True(t, l.ledger.Balance("maker").EQUint64(890))

	res, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(10),
		Gives:     num.NewUint(10),
		FillWants: true,
		GasBudget: 1_000,
	})
	require.NoError(t, err)
	assert.True(t, res.Got.EQUint64(10))
	assert.Equal(t, 0, l.Len())
	// bond released on full consumption, payment settled as token credit
	assert.True(t, l.ledger.Balance("maker").EQUint64(1_000))
	assert.True(t, l.ledger.TokenBalance("maker", "DAI").EQUint64(10))
}

func TestWalkGasBudgetLeavesRestUnmatched(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	l.insert(t, "maker", 10, 10)
	l.insert(t, "maker", 10, 10)

	res, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(20),
		Gives:     num.NewUint(20),
		FillWants: true,
		// one offer's worth of gas only
		GasBudget: 100,
	})
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	assert.True(t, res.Partial)
	assert.Equal(t, 1, l.Len())
}

func TestDeadBookStillAllowsRetract(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 1_000)
	id := l.insert(t, "maker", 10, 10)
	l.SetDead(true)

	_, err := l.Insert(context.Background(), "maker", num.NewUint(10), num.NewUint(10), 100, num.NewUint(1), types.NoID)
	assert.ErrorIs(t, err, types.ErrInactivePair)
	_, err = l.Walk(context.Background(), offerlist.WalkParams{
		Taker: "taker", Wants: num.NewUint(1), Gives: num.NewUint(1), GasBudget: 100,
	})
	assert.ErrorIs(t, err, types.ErrInactivePair)

	// owners can still pull their funds out
	refund, err := l.Remove(context.Background(), "maker", id, true)
	require.NoError(t, err)
	assert.True(t, refund.EQUint64(110))
}

func TestWalkInactivePair(t *testing.T) {
	l := getTestList(t)
	l.SetActive(false)
	_, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker: "taker", Wants: num.NewUint(1), Gives: num.NewUint(1), GasBudget: 100,
	})
	assert.ErrorIs(t, err, types.ErrInactivePair)
	_, err = l.Insert(context.Background(), "maker", num.NewUint(1), num.NewUint(1), 10, num.NewUint(1), types.NoID)
	assert.ErrorIs(t, err, types.ErrInactivePair)
}

// reentrantFulfiller tries to run a nested walk from inside fulfil, the
// way a malicious offer's logic would.
type reentrantFulfiller struct {
	list *offerlist.OfferList
	err  error
}

func (f *reentrantFulfiller) Fulfil(ctx context.Context, _ *types.Offer, takerWants, _ *num.Uint, _ uint64) offerlist.FulfilResult {
	_, f.err = f.list.Walk(ctx, offerlist.WalkParams{
		Taker: "nested", Wants: num.NewUint(1), Gives: num.NewUint(1), GasBudget: 100,
	})
	return offerlist.FulfilResult{
		Delivered: takerWants.Clone(),
		GasUsed:   1,
		Reason:    types.ExecutionOK,
	}
}

func TestWalkRejectsReentrantMatch(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	l.insert(t, "maker", 10, 10)
	rf := &reentrantFulfiller{list: l.OfferList}
	l.RegisterFulfiller("maker", rf)

	assert.False(t, l.Locked())
	res, err := l.Walk(context.Background(), offerlist.WalkParams{
		Taker:     "taker",
		Wants:     num.NewUint(10),
		Gives:     num.NewUint(10),
		FillWants: true,
		GasBudget: 1_000,
	})
	require.NoError(t, err)
	// the outer walk completed, the nested one was rejected outright
	assert.True(t, res.Got.EQUint64(10))
	assert.ErrorIs(t, rf.err, types.ErrReentrantMatch)
	assert.False(t, l.Locked())
}

func TestEventStreamOrdering(t *testing.T) {
	l := getTestList(t)
	l.fund("maker", 10_000)
	l.BeginBlock(7)
	l.insert(t, "maker", 10, 10)
	l.insert(t, "maker", 10, 12)
	l.BeginBlock(8)
	l.insert(t, "maker", 10, 14)

	require.Len(t, l.broker.evts, 3)
	assert.Equal(t, uint64(7), l.broker.evts[0].Height())
	assert.Equal(t, uint64(0), l.broker.evts[0].LogIndex())
	assert.Equal(t, uint64(1), l.broker.evts[1].LogIndex())
	// index resets with the height
	assert.Equal(t, uint64(8), l.broker.evts[2].Height())
	assert.Equal(t, uint64(0), l.broker.evts[2].LogIndex())
}
