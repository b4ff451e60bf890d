package types

import (
	"code.tidebook.io/tidebook/types/num"
)

// MarketOrder is a taker order against one side of a pair. Wants is the
// amount of the side's outbound asset the taker would like to receive,
// Gives the amount of the inbound asset they are willing to spend; the
// ratio is the taker's price limit. With FillWants set the walk stops once
// Wants is sourced, otherwise once Gives is spent.
type MarketOrder struct {
	Taker     string
	Wants     *num.Uint
	Gives     *num.Uint
	FillWants bool
	// GasLimit caps the gas the whole walk may use, zero means estimate.
	GasLimit uint64
}

// Validate rejects structurally invalid order terms.
func (o *MarketOrder) Validate() error {
	if o.Wants == nil || o.Gives == nil {
		return ErrInvalidOrder
	}
	if o.FillWants && o.Wants.IsZero() {
		return ErrInvalidOrder
	}
	if !o.FillWants && o.Gives.IsZero() {
		return ErrInvalidOrder
	}
	return nil
}

// OrderResult is the aggregate outcome of a market order walk.
type OrderResult struct {
	// TotalGot is what the taker received, net of fees.
	TotalGot *num.Uint
	// TotalGave is what the taker spent.
	TotalGave *num.Uint
	// Penalty is the sum of bounties collected from failing offers.
	Penalty *num.Uint
	// Fee is the amount retained by the pair's fee pool.
	Fee *num.Uint
	// PartialFill is true iff the fill target was not fully reached.
	PartialFill bool
	// Fills lists the contributing offers in match order.
	Fills []*Fill
}

// NewOrderResult returns a zeroed result.
func NewOrderResult() *OrderResult {
	return &OrderResult{
		TotalGot:  num.UintZero(),
		TotalGave: num.UintZero(),
		Penalty:   num.UintZero(),
		Fee:       num.UintZero(),
	}
}

// Fill is one offer's contribution to a market order: the taker took Got
// of the offer's gives in exchange for Gave of its wants.
type Fill struct {
	OfferID uint64
	Maker   string
	Got     *num.Uint
	Gave    *num.Uint
}
