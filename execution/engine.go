package execution

import (
	"context"

	"code.tidebook.io/tidebook/logging"
	"code.tidebook.io/tidebook/metrics"
	"code.tidebook.io/tidebook/offerlist"
	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"
)

// feeDenominator scales the pair fee, which is expressed in basis points.
const feeDenominator = 10_000

// Engine drives taker orders against an offer list: it budgets gas,
// runs the matching walk and settles the pair fee out of the proceeds.
type Engine struct {
	log *logging.Logger
	cfg Config
}

// New instantiates an execution engine.
func New(log *logging.Logger, cfg Config) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())
	return &Engine{
		log: log,
		cfg: cfg,
	}
}

// ReloadConf updates the engine's configuration.
func (e *Engine) ReloadConf(cfg Config) {
	e.log.Info("reloading configuration")
	if e.log.GetLevel() != cfg.Level.Get() {
		e.log.Info("updating log level",
			logging.String("old", e.log.GetLevel().String()),
			logging.String("new", cfg.Level.String()),
		)
		e.log.SetLevel(cfg.Level.Get())
	}
	e.cfg = cfg
}

// MarketOrder validates and executes a taker order against the list,
// returning the aggregate outcome net of the pair fee. Individual offer
// failures do not fail the order, they surface as a positive Penalty.
func (e *Engine) MarketOrder(ctx context.Context, list *offerlist.OfferList, order *types.MarketOrder) (*types.OrderResult, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	timer := metrics.NewTimeCounter("-", "execution", "MarketOrder")
	defer timer.EngineTimeCounterAdd()

	conf := list.Config()
	budget := e.gasBudget(conf, order)
	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("executing market order",
			logging.String("taker", order.Taker),
			logging.Stringer("wants", order.Wants),
			logging.Stringer("gives", order.Gives),
			logging.Bool("fillWants", order.FillWants),
			logging.Uint64("gasBudget", budget),
		)
	}

	walk, err := list.Walk(ctx, offerlist.WalkParams{
		Taker:     order.Taker,
		Wants:     order.Wants,
		Gives:     order.Gives,
		FillWants: order.FillWants,
		GasBudget: budget,
	})
	if err != nil {
		return nil, err
	}

	res := types.NewOrderResult()
	res.TotalGave = walk.Gave.Clone()
	res.Penalty = walk.Penalty.Clone()
	res.PartialFill = walk.Partial
	res.Fills = walk.Fills

	// the fee comes out of the taker's receipt and feeds the pair's pool
	res.Fee = e.takeFee(conf, walk.Got)
	res.TotalGot = num.UintZero().Sub(walk.Got, res.Fee)
	if !res.Fee.IsZero() {
		list.CreditFee(res.Fee)
	}
	return res, nil
}

// gasBudget bounds the walk's gas spend: the taker's explicit limit when
// given, otherwise an estimate derived from the requested volume and the
// pair's density floor, each clipped to the global maximum.
func (e *Engine) gasBudget(conf types.Config, order *types.MarketOrder) uint64 {
	if order.GasLimit > 0 {
		if order.GasLimit > conf.Global.GasMax {
			return conf.Global.GasMax
		}
		return order.GasLimit
	}
	if !conf.Local.Density.IsPositive() {
		// no density floor, nothing bounds per offer gas from below
		return conf.Global.GasMax
	}
	volume := order.Wants
	if !order.FillWants {
		volume = order.Gives
	}
	// density is the minimum gives per gas unit, so volume/density is an
	// upper bound on the gas the matched offers may require
	d := volume.ToDecimal().Div(conf.Local.Density).Ceil()
	if !d.LessThan(num.DecimalFromInt64(int64(conf.Global.GasMax))) {
		return conf.Global.GasMax
	}
	est := conf.Local.OfferGasbase + uint64(d.IntPart())
	if est > conf.Global.GasMax {
		return conf.Global.GasMax
	}
	return est
}

func (e *Engine) takeFee(conf types.Config, got *num.Uint) *num.Uint {
	if conf.Local.Fee == 0 || got.IsZero() {
		return num.UintZero()
	}
	fee := num.UintZero().Mul(got, num.NewUint(conf.Local.Fee))
	return fee.Div(fee, num.NewUint(feeDenominator))
}
