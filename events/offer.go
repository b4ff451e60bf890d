package events

import (
	"context"

	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"
)

// OfferWrite is emitted whenever an offer is created or updated in place.
// Prev carries the id of the offer it was inserted after (NoID for the new
// best offer), it is the ordering ground truth mirrors rely on.
type OfferWrite struct {
	*Base
	pair  types.Pair
	side  types.Side
	offer types.Offer
}

func NewOfferWriteEvent(ctx context.Context, height, logIndex uint64, pair types.Pair, side types.Side, o *types.Offer) *OfferWrite {
	return &OfferWrite{
		Base:  newBase(ctx, OfferWriteEvent, height, logIndex),
		pair:  pair,
		side:  side,
		offer: *o.Clone(),
	}
}

func (e OfferWrite) Pair() types.Pair { return e.pair }
func (e OfferWrite) Side() types.Side { return e.side }
func (e OfferWrite) OfferID() uint64  { return e.offer.ID }
func (e *OfferWrite) Offer() *types.Offer {
	return e.offer.Clone()
}

// OfferSuccess is emitted when an offer delivered in full during a walk.
// Mirrors treat it as a removal, a partially consumed offer is re-added
// by the OfferWrite that follows it.
type OfferSuccess struct {
	*Base
	pair       types.Pair
	side       types.Side
	offerID    uint64
	taker      string
	takerWants *num.Uint
	takerGives *num.Uint
}

func NewOfferSuccessEvent(ctx context.Context, height, logIndex uint64, pair types.Pair, side types.Side, id uint64, taker string, takerWants, takerGives *num.Uint) *OfferSuccess {
	return &OfferSuccess{
		Base:       newBase(ctx, OfferSuccessEvent, height, logIndex),
		pair:       pair,
		side:       side,
		offerID:    id,
		taker:      taker,
		takerWants: takerWants.Clone(),
		takerGives: takerGives.Clone(),
	}
}

func (e OfferSuccess) Pair() types.Pair      { return e.pair }
func (e OfferSuccess) Side() types.Side      { return e.side }
func (e OfferSuccess) OfferID() uint64       { return e.offerID }
func (e OfferSuccess) Taker() string         { return e.taker }
func (e OfferSuccess) TakerWants() *num.Uint { return e.takerWants.Clone() }
func (e OfferSuccess) TakerGives() *num.Uint { return e.takerGives.Clone() }

// OfferFail is emitted when an offer's fulfil logic failed during a walk
// and its bounty was paid out to the taker.
type OfferFail struct {
	*Base
	pair       types.Pair
	side       types.Side
	offerID    uint64
	taker      string
	takerWants *num.Uint
	takerGives *num.Uint
	reason     types.ExecutionReason
}

func NewOfferFailEvent(ctx context.Context, height, logIndex uint64, pair types.Pair, side types.Side, id uint64, taker string, takerWants, takerGives *num.Uint, reason types.ExecutionReason) *OfferFail {
	return &OfferFail{
		Base:       newBase(ctx, OfferFailEvent, height, logIndex),
		pair:       pair,
		side:       side,
		offerID:    id,
		taker:      taker,
		takerWants: takerWants.Clone(),
		takerGives: takerGives.Clone(),
		reason:     reason,
	}
}

func (e OfferFail) Pair() types.Pair              { return e.pair }
func (e OfferFail) Side() types.Side              { return e.side }
func (e OfferFail) OfferID() uint64               { return e.offerID }
func (e OfferFail) Taker() string                 { return e.taker }
func (e OfferFail) TakerWants() *num.Uint         { return e.takerWants.Clone() }
func (e OfferFail) TakerGives() *num.Uint         { return e.takerGives.Clone() }
func (e OfferFail) Reason() types.ExecutionReason { return e.reason }

// OfferRetract is emitted when an owner explicitly removes their offer.
type OfferRetract struct {
	*Base
	pair    types.Pair
	side    types.Side
	offerID uint64
}

func NewOfferRetractEvent(ctx context.Context, height, logIndex uint64, pair types.Pair, side types.Side, id uint64) *OfferRetract {
	return &OfferRetract{
		Base:    newBase(ctx, OfferRetractEvent, height, logIndex),
		pair:    pair,
		side:    side,
		offerID: id,
	}
}

func (e OfferRetract) Pair() types.Pair { return e.pair }
func (e OfferRetract) Side() types.Side { return e.side }
func (e OfferRetract) OfferID() uint64  { return e.offerID }

// SetGasbase is emitted when a pair side's offer_gasbase changes.
type SetGasbase struct {
	*Base
	pair         types.Pair
	side         types.Side
	offerGasbase uint64
}

func NewSetGasbaseEvent(ctx context.Context, height, logIndex uint64, pair types.Pair, side types.Side, offerGasbase uint64) *SetGasbase {
	return &SetGasbase{
		Base:         newBase(ctx, SetGasbaseEvent, height, logIndex),
		pair:         pair,
		side:         side,
		offerGasbase: offerGasbase,
	}
}

func (e SetGasbase) Pair() types.Pair     { return e.pair }
func (e SetGasbase) Side() types.Side     { return e.side }
func (e SetGasbase) OfferGasbase() uint64 { return e.offerGasbase }
