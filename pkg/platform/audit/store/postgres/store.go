package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "coalesce/pkg/domain"
	audit "coalesce/pkg/platform/audit"
	txcontext "coalesce/pkg/platform/tx"
)

// Store persists audit entries in PostgreSQL. Appends participate in the
// per-record transaction from context so an entry commits atomically with
// the contact change it describes; idempotent re-runs rely on the caller
// supplying a deterministic entry ID and ON CONFLICT DO NOTHING here.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	entryID := entry.ID
	if entryID == "" {
		entryID = uuid.New().String()
	}
	query := `
		INSERT INTO audit_entries (
			id, batch_id, contact_id, decision, actor, occurred_at,
			before_snapshot, after_snapshot, fields, reason
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.runner(ctx).ExecContext(ctx, query,
		entryID, entry.BatchID.String(), nullableContact(entry.ContactID),
		string(entry.Decision), entry.Actor, entry.Timestamp,
		[]byte(entry.Before), []byte(entry.After),
		pq.Array(entry.Fields), entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListByContact(ctx context.Context, contactID id.ContactID) ([]audit.Entry, error) {
	return s.list(ctx, `WHERE contact_id = $1`, contactID.String())
}

func (s *Store) ListByBatch(ctx context.Context, batchID id.BatchID) ([]audit.Entry, error) {
	return s.list(ctx, `WHERE batch_id = $1`, batchID.String())
}

func (s *Store) list(ctx context.Context, where string, arg any) ([]audit.Entry, error) {
	query := `
		SELECT id, batch_id, contact_id, decision, actor, occurred_at,
			before_snapshot, after_snapshot, fields, reason
		FROM audit_entries ` + where + ` ORDER BY occurred_at, id`
	rows, err := s.runner(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry     audit.Entry
			batchID   string
			contactID sql.NullString
			decision  string
			before    []byte
			after     []byte
		)
		err := rows.Scan(&entry.ID, &batchID, &contactID, &decision, &entry.Actor,
			&entry.Timestamp, &before, &after, pq.Array(&entry.Fields), &entry.Reason)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if parsed, err := id.ParseBatchID(batchID); err == nil {
			entry.BatchID = parsed
		}
		if contactID.Valid {
			if parsed, err := id.ParseContactID(contactID.String); err == nil {
				entry.ContactID = parsed
			}
		}
		entry.Decision = audit.Decision(decision)
		entry.Before = before
		entry.After = after
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullableContact(contactID id.ContactID) any {
	if contactID.IsNil() {
		return nil
	}
	return contactID.String()
}
