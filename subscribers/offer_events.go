package subscribers

import (
	"context"

	"code.tidebook.io/tidebook/events"
	"code.tidebook.io/tidebook/logging"
)

// OfferEvent is the subset shared by every offer lifecycle event.
type OfferEvent interface {
	events.Event
	OfferID() uint64
}

// OfferEventLogger logs every offer lifecycle event going over the bus,
// useful when debugging book divergence.
type OfferEventLogger struct {
	*Base
	log *logging.Logger
}

func NewOfferEventLogger(ctx context.Context, log *logging.Logger) *OfferEventLogger {
	s := &OfferEventLogger{
		Base: NewBase(ctx, 10, false),
		log:  log.Named("offer-event-logger"),
	}
	go s.loop()
	return s
}

func (s *OfferEventLogger) loop() {
	for {
		select {
		case <-s.Ctx().Done():
			return
		case evts, ok := <-s.Recv():
			if !ok {
				return
			}
			if s.isRunning() {
				s.Push(evts...)
			}
		}
	}
}

func (s *OfferEventLogger) Push(evts ...events.Event) {
	for _, e := range evts {
		oe, ok := e.(OfferEvent)
		if !ok {
			continue
		}
		s.log.Debug("offer event",
			logging.String("type", e.Type().String()),
			logging.Uint64("offer-id", oe.OfferID()),
			logging.Uint64("height", e.Height()),
			logging.Uint64("log-index", e.LogIndex()),
		)
	}
}

func (s *OfferEventLogger) Types() []events.Type {
	return []events.Type{
		events.OfferWriteEvent,
		events.OfferSuccessEvent,
		events.OfferFailEvent,
		events.OfferRetractEvent,
	}
}
