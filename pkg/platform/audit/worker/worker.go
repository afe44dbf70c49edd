package worker

import (
	"context"
	"log/slog"

	audit "coalesce/pkg/platform/audit"
)

// Sink receives audit entries off the hot path. The Kafka publisher
// implements this; so does any future SIEM forwarder.
type Sink interface {
	Publish(ctx context.Context, entry audit.Entry) error
}

// Worker drains committed audit entries from a channel into a secondary
// sink. The durable store write already happened inside the record
// transaction; this fan-out is best-effort and must never block or fail an
// import.
type Worker struct {
	sink   Sink
	inbox  <-chan audit.Entry
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan audit.Entry, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			if err := w.sink.Publish(ctx, entry); err != nil {
				w.logger.ErrorContext(ctx, "audit sink publish failed",
					"entry_id", entry.ID,
					"decision", string(entry.Decision),
					"error", err.Error(),
				)
			}
		}
	}
}
