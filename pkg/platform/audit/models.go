// Package audit defines the durable, append-only record of every match
// decision, lock evaluation, and field change, keyed to the import batch that
// caused it. Entries are created once per decision and never mutated.
package audit

import (
	"context"
	"encoding/json"
	"time"

	id "coalesce/pkg/domain"
)

// Decision classifies what the engine did with a record.
type Decision string

const (
	DecisionCreated         Decision = "created"
	DecisionMatched         Decision = "matched"
	DecisionMergeBlocked    Decision = "merge-blocked"
	DecisionConflictFlagged Decision = "conflict-flagged"
	DecisionConsentChanged  Decision = "consent-changed"
	DecisionStaffEdited     Decision = "staff-edited"
	DecisionTombstoned      Decision = "tombstoned"
	DecisionErrored         Decision = "errored"
)

// Entry is one immutable audit record. Actor is "import:<source>" for batch
// records and "staff:<user>" for direct edits, so "why does this contact
// have this value" is answerable per field change.
type Entry struct {
	ID        string
	BatchID   id.BatchID
	ContactID id.ContactID
	Decision  Decision
	Actor     string
	Timestamp time.Time

	// Before and After are field snapshots of whatever the decision touched.
	// JSON so reporting tools can diff without a schema dependency.
	Before json.RawMessage
	After  json.RawMessage

	// Fields lists the specific field categories involved: the blocked
	// field list for merge-blocked, the changed fields for matched.
	Fields []string

	// Reason carries scorer/guard output worth keeping: confidence tier,
	// conflict explanation, denial cause.
	Reason string
}

// ImportActor formats the actor tag for a source-system import.
func ImportActor(source id.SourceSystem) string {
	return "import:" + source.String()
}

// StaffActor formats the actor tag for a direct staff edit.
func StaffActor(user string) string {
	return "staff:" + user
}

// Store is the persistence contract for audit entries. Append-only; there is
// deliberately no update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByContact(ctx context.Context, contactID id.ContactID) ([]Entry, error)
	ListByBatch(ctx context.Context, batchID id.BatchID) ([]Entry, error)
}

// Snapshot marshals a field snapshot, swallowing the (practically
// impossible) marshal error into a null snapshot rather than failing the
// audit append.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return b
}
