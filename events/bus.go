package events

import (
	"context"
)

// Type of a bus event.
type Type int

const (
	// All is used by subscribers to receive every event, it has no
	// corresponding payload.
	All Type = iota
	// OfferWriteEvent - an offer was created or updated on a list.
	OfferWriteEvent
	// OfferSuccessEvent - an offer was fully executed during a walk.
	OfferSuccessEvent
	// OfferFailEvent - an offer's fulfil logic failed, its bounty was paid.
	OfferFailEvent
	// OfferRetractEvent - an offer was explicitly removed by its owner.
	OfferRetractEvent
	// SetGasbaseEvent - the pair's offer_gasbase changed.
	SetGasbaseEvent
)

var eventStrings = map[Type]string{
	All:               "ALL",
	OfferWriteEvent:   "OfferWrite",
	OfferSuccessEvent: "OfferSuccess",
	OfferFailEvent:    "OfferFail",
	OfferRetractEvent: "OfferRetract",
	SetGasbaseEvent:   "SetGasbase",
}

// String gets the string representation of an event type.
func (t Type) String() string {
	s, ok := eventStrings[t]
	if !ok {
		return "UNKNOWN EVENT"
	}
	return s
}

// Event is the common denominator all bus events share. Height and
// LogIndex give a total order over all events of one pair side.
type Event interface {
	Type() Type
	Context() context.Context
	Height() uint64
	LogIndex() uint64
}

// Base common denominator all bus events share.
type Base struct {
	ctx      context.Context
	et       Type
	height   uint64
	logIndex uint64
}

// A base event holds no data, so the constructor is not called directly.
func newBase(ctx context.Context, t Type, height, logIndex uint64) *Base {
	return &Base{
		ctx:      ctx,
		et:       t,
		height:   height,
		logIndex: logIndex,
	}
}

// Context returns the context the event was emitted with.
func (b Base) Context() context.Context {
	return b.ctx
}

// Type returns the event type.
func (b Base) Type() Type {
	return b.et
}

// Height returns the logical height the event was emitted at.
func (b Base) Height() uint64 {
	return b.height
}

// LogIndex returns the event's sequence number within its height.
func (b Base) LogIndex() uint64 {
	return b.logIndex
}
