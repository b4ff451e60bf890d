package offerlist

import (
	"context"

	"code.tidebook.io/tidebook/types"
	"code.tidebook.io/tidebook/types/num"
)

// FulfilResult is what an offer's fulfil logic reports back. Any non OK
// reason is treated uniformly as a chargeable failure by the walk,
// regardless of whether the underlying cause was a logic revert, gas
// exhaustion or a short transfer.
type FulfilResult struct {
	// Delivered is the amount of the offer's gives actually handed over.
	Delivered *num.Uint
	// GasUsed is the gas the logic consumed, clipped to the gas limit by
	// the caller.
	GasUsed uint64
	// Reason is ExecutionOK on success.
	Reason types.ExecutionReason
}

// Fulfiller is the capability scope handed to an offer's execution logic.
// The engine never trusts it: the result is checked against the promised
// amount and the gas limit, and every failure mode is absorbed into the
// bounty mechanism.
type Fulfiller interface {
	// Fulfil asks the offer to deliver takerWants of its gives against
	// takerGives of its wants, spending at most gasLimit gas.
	Fulfil(ctx context.Context, offer *types.Offer, takerWants, takerGives *num.Uint, gasLimit uint64) FulfilResult
}

// DirectFulfiller is the trivial fulfil logic of plain escrowed offers:
// delivery always succeeds and costs a fixed amount of gas.
type DirectFulfiller struct {
	// Gas is the flat cost reported per fulfil call.
	Gas uint64
}

func (f DirectFulfiller) Fulfil(_ context.Context, _ *types.Offer, takerWants, _ *num.Uint, gasLimit uint64) FulfilResult {
	gas := f.Gas
	if gas > gasLimit {
		return FulfilResult{
			Delivered: num.UintZero(),
			GasUsed:   gasLimit,
			Reason:    types.ExecutionOutOfGas,
		}
	}
	return FulfilResult{
		Delivered: takerWants.Clone(),
		GasUsed:   gas,
		Reason:    types.ExecutionOK,
	}
}
