package audit

import (
	"context"

	id "coalesce/pkg/domain"
)

// Fanout decorates a Store with best-effort delivery to a secondary sink
// channel (the Kafka worker). The durable append is the source of truth; a
// full outbox drops the fan-out copy rather than slowing an import.
type Fanout struct {
	next   Store
	outbox chan Entry
}

// NewFanout wraps next. The returned channel feeds worker.Worker.
func NewFanout(next Store, buffer int) (*Fanout, <-chan Entry) {
	if buffer <= 0 {
		buffer = 1024
	}
	f := &Fanout{next: next, outbox: make(chan Entry, buffer)}
	return f, f.outbox
}

// Append writes through to the durable store, then offers a copy to the
// outbox. The offer happens before any enclosing transaction commits, so the
// export stream can carry an entry whose transaction later rolled back.
// Consumers must treat the durable store as authoritative and the stream as
// an advisory feed that may include phantoms but never omits a committed
// entry while the outbox has room.
func (f *Fanout) Append(ctx context.Context, entry Entry) error {
	if err := f.next.Append(ctx, entry); err != nil {
		return err
	}
	select {
	case f.outbox <- entry:
	default:
	}
	return nil
}

func (f *Fanout) ListByContact(ctx context.Context, contactID id.ContactID) ([]Entry, error) {
	return f.next.ListByContact(ctx, contactID)
}

func (f *Fanout) ListByBatch(ctx context.Context, batchID id.BatchID) ([]Entry, error) {
	return f.next.ListByBatch(ctx, batchID)
}
