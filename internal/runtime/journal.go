package runtime

import (
	"context"
	"log/slog"

	"github.com/loqalabs/signspeak/internal/bus"
	"github.com/loqalabs/signspeak/internal/eventstore"
	"github.com/loqalabs/signspeak/internal/protocol"
)

// journal persists session events and fans them out on the bus.
type journal struct {
	store  *eventstore.Store
	bus    *bus.Client
	logger *slog.Logger
}

func newJournal(store *eventstore.Store, busClient *bus.Client, logger *slog.Logger) *journal {
	return &journal{store: store, bus: busClient, logger: logger.With(slog.String("component", "journal"))}
}

func (j *journal) Record(ctx context.Context, evt protocol.Event) {
	if j.store != nil {
		if err := j.store.Record(ctx, evt); err != nil {
			j.logger.Warn("failed to persist event", slog.String("kind", evt.Kind), slogError(err))
		}
	}
	if j.bus != nil {
		if err := j.bus.PublishJSON(protocol.EventSubject(evt.Kind), evt); err != nil {
			j.logger.Warn("failed to publish event", slog.String("kind", evt.Kind), slogError(err))
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
