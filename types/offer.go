package types

import (
	"code.tidebook.io/tidebook/types/num"
)

// NoID is the sentinel for an absent prev/next link or pivot hint.
// Offer ids are assigned from 1 up and never reused.
const NoID uint64 = 0

// Side of a trading pair book.
type Side int

const (
	// SideAsk offers sell the base asset for the quote asset.
	SideAsk Side = iota
	// SideBid offers sell the quote asset for the base asset.
	SideBid
)

func (s Side) String() string {
	if s == SideAsk {
		return "ask"
	}
	return "bid"
}

// Opposite returns the other side of the pair.
func (s Side) Opposite() Side {
	if s == SideAsk {
		return SideBid
	}
	return SideAsk
}

// Offer is a standing commitment to exchange Gives of one asset for Wants
// of another, bonded by its owner's provision. The id is unique per
// (pair, side) and monotonically assigned, the Prev/Next links form a
// doubly linked, strictly price ordered list with the best price first.
type Offer struct {
	ID    uint64
	Prev  uint64
	Next  uint64
	Owner string

	Wants *num.Uint
	Gives *num.Uint

	// GasReq is the upper bound on execution cost the offer's fulfil
	// logic may consume.
	GasReq uint64
	// GasPrice is the gas price this offer's bounty was computed with,
	// floored at the pair's configured gas price on insertion.
	GasPrice *num.Uint
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	cpy := *o
	cpy.Wants = o.Wants.Clone()
	cpy.Gives = o.Gives.Clone()
	cpy.GasPrice = o.GasPrice.Clone()
	return &cpy
}

// BetterThan reports whether o is strictly better priced than oth, where
// better means more given per unit wanted. The comparison is done by
// cross-multiplication, never through a lossy ratio.
func (o *Offer) BetterThan(oth *Offer) bool {
	lhs := num.UintZero().Mul(o.Gives, oth.Wants)
	rhs := num.UintZero().Mul(oth.Gives, o.Wants)
	return lhs.GT(rhs)
}

// WorseThan reports whether o is strictly worse priced than oth.
func (o *Offer) WorseThan(oth *Offer) bool {
	lhs := num.UintZero().Mul(o.Gives, oth.Wants)
	rhs := num.UintZero().Mul(oth.Gives, o.Wants)
	return lhs.LT(rhs)
}

// PriceDensity returns gives/gasreq, the economic density of the offer.
func (o *Offer) PriceDensity() num.Decimal {
	if o.GasReq == 0 {
		return num.DecimalFromUint(o.Gives)
	}
	return num.DecimalFromUint(o.Gives).Div(num.DecimalFromInt64(int64(o.GasReq)))
}

// RequiredBounty is the provision an offer must bond:
// (gasreq + offer_gasbase) * gasprice.
func (o *Offer) RequiredBounty(offerGasbase uint64) *num.Uint {
	gas := num.NewUint(o.GasReq + offerGasbase)
	return num.UintZero().Mul(gas, o.GasPrice)
}
