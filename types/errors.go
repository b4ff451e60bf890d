package types

import (
	"github.com/pkg/errors"
)

var (
	// ErrInsufficientProvision signals the owner's bonded balance does not
	// cover the bounty a new or updated offer requires.
	ErrInsufficientProvision = errors.New("insufficient provision")

	// ErrBelowDensity signals an offer's gives/gasreq ratio is below the
	// pair's configured minimum density.
	ErrBelowDensity = errors.New("offer density below minimum")

	// ErrUnauthorized signals a mutation attempted by a party that is not
	// the offer's recorded owner.
	ErrUnauthorized = errors.New("not the offer owner")

	// ErrUnknownOffer signals the offer id is not live on this list.
	ErrUnknownOffer = errors.New("unknown offer")

	// ErrReentrantMatch signals an attempted concurrent entry into a
	// matching walk already in progress on the same pair.
	ErrReentrantMatch = errors.New("reentrant match on pair")

	// ErrTransferFailure signals a post-fill settlement transfer failed.
	// Logged by the engine, never rolls back the match.
	ErrTransferFailure = errors.New("settlement transfer failed")

	// ErrInconsistentEventStream signals a semibook cache received events
	// out of the expected (height, log index) order. Fatal to the cache
	// instance, which must be resynced from scratch.
	ErrInconsistentEventStream = errors.New("inconsistent event stream")

	// ErrInactivePair signals an operation on an inactive offer list.
	ErrInactivePair = errors.New("offer list not active")

	// ErrInvalidOrder signals structurally invalid order terms.
	ErrInvalidOrder = errors.New("invalid order")
)

// ExecutionReason classifies why an offer's fulfil logic failed mid walk.
// Any non success reason is treated uniformly as a chargeable failure.
type ExecutionReason int

const (
	// ExecutionOK - the offer delivered in full.
	ExecutionOK ExecutionReason = iota
	// ExecutionReverted - the offer's logic refused the trade.
	ExecutionReverted
	// ExecutionOutOfGas - the logic exceeded minimum of gasreq and the gas left.
	ExecutionOutOfGas
	// ExecutionShortDelivery - the logic returned less than promised.
	ExecutionShortDelivery
)

func (r ExecutionReason) String() string {
	switch r {
	case ExecutionOK:
		return "ok"
	case ExecutionReverted:
		return "reverted"
	case ExecutionOutOfGas:
		return "out-of-gas"
	case ExecutionShortDelivery:
		return "short-delivery"
	default:
		return "unknown"
	}
}
