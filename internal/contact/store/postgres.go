package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
	"coalesce/pkg/platform/sentinel"
	txcontext "coalesce/pkg/platform/tx"
)

// Postgres persists contacts in two tables: contacts (multi-value identity
// fields as JSONB) and contact_source_refs with a UNIQUE constraint on
// (source_system, external_id). The constraint, not application code, is the
// idempotency guarantee for batch re-runs.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runner returns the per-record transaction from context when the pipeline
// opened one, otherwise the pooled handle.
func (s *Postgres) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// contactRow mirrors the contacts table columns that are stored as JSONB.
type contactRow struct {
	Emails    []models.EmailAddress  `json:"emails"`
	Phones    []models.PhoneNumber   `json:"phones"`
	Addresses []models.PostalAddress `json:"addresses"`
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Postgres) Create(ctx context.Context, contact *models.Contact) error {
	identity, err := json.Marshal(contactRow{
		Emails:    contact.Emails,
		Phones:    contact.Phones,
		Addresses: contact.Addresses,
	})
	if err != nil {
		return fmt.Errorf("marshal identity fields: %w", err)
	}

	query := `
		INSERT INTO contacts (
			id, first_name, last_name, display_name, identity_fields,
			source_system, lock_level, subscription_protected,
			subscription_status, subscription_channel, subscription_method, subscription_effective,
			total_value_cents, transaction_count, quality_score, address_quality,
			staff_edits, created_at, updated_at, deleted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`
	_, err = s.runner(ctx).ExecContext(ctx, query,
		contact.ID.String(), contact.FirstName, contact.LastName, contact.DisplayName, identity,
		contact.SourceSystem.String(), string(contact.LockLevel), contact.SubscriptionProtected,
		string(contact.Subscription.Status), contact.Subscription.Channel.String(),
		contact.Subscription.Method.String(), nullTime(contact.Subscription.EffectiveDate),
		contact.TotalValueCents, contact.TransactionCount, contact.QualityScore, contact.AddressQuality,
		contact.StaffEdits, contact.CreatedAt, contact.UpdatedAt, contact.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert contact: %w", err)
	}

	return s.registerRefs(ctx, contact)
}

func (s *Postgres) Update(ctx context.Context, contact *models.Contact) error {
	identity, err := json.Marshal(contactRow{
		Emails:    contact.Emails,
		Phones:    contact.Phones,
		Addresses: contact.Addresses,
	})
	if err != nil {
		return fmt.Errorf("marshal identity fields: %w", err)
	}

	query := `
		UPDATE contacts SET
			first_name = $2, last_name = $3, display_name = $4, identity_fields = $5,
			lock_level = $6, subscription_protected = $7,
			subscription_status = $8, subscription_channel = $9,
			subscription_method = $10, subscription_effective = $11,
			total_value_cents = $12, transaction_count = $13,
			quality_score = $14, address_quality = $15,
			staff_edits = $16, updated_at = $17, deleted_at = $18
		WHERE id = $1
	`
	res, err := s.runner(ctx).ExecContext(ctx, query,
		contact.ID.String(), contact.FirstName, contact.LastName, contact.DisplayName, identity,
		string(contact.LockLevel), contact.SubscriptionProtected,
		string(contact.Subscription.Status), contact.Subscription.Channel.String(),
		contact.Subscription.Method.String(), nullTime(contact.Subscription.EffectiveDate),
		contact.TotalValueCents, contact.TransactionCount,
		contact.QualityScore, contact.AddressQuality,
		contact.StaffEdits, contact.UpdatedAt, contact.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}

	return s.registerRefs(ctx, contact)
}

// registerRefs inserts any source refs not yet recorded. ON CONFLICT the ref
// may already belong to this contact (re-run) or another contact (true
// duplicate); the caller-visible distinction is made by re-reading ownership.
func (s *Postgres) registerRefs(ctx context.Context, contact *models.Contact) error {
	for _, ref := range contact.Sources {
		query := `
			INSERT INTO contact_source_refs (contact_id, source_system, external_id, first_seen)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (source_system, external_id) DO NOTHING
		`
		res, err := s.runner(ctx).ExecContext(ctx, query,
			contact.ID.String(), ref.Source.String(), ref.ExternalID, ref.FirstSeen)
		if err != nil {
			return fmt.Errorf("insert source ref: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("source ref rows affected: %w", err)
		}
		if inserted == 0 {
			var owner string
			err := s.runner(ctx).QueryRowContext(ctx,
				`SELECT contact_id FROM contact_source_refs WHERE source_system = $1 AND external_id = $2`,
				ref.Source.String(), ref.ExternalID).Scan(&owner)
			if err != nil {
				return fmt.Errorf("resolve source ref owner: %w", err)
			}
			if owner != contact.ID.String() {
				return sentinel.ErrDuplicate
			}
		}
	}
	return nil
}

const selectContact = `
	SELECT c.id, c.first_name, c.last_name, c.display_name, c.identity_fields,
		c.source_system, c.lock_level, c.subscription_protected,
		c.subscription_status, c.subscription_channel, c.subscription_method, c.subscription_effective,
		c.total_value_cents, c.transaction_count, c.quality_score, c.address_quality,
		c.staff_edits, c.created_at, c.updated_at, c.deleted_at
	FROM contacts c
`

func (s *Postgres) FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error) {
	row := s.runner(ctx).QueryRowContext(ctx, selectContact+` WHERE c.id = $1`, contactID.String())
	contact, err := scanContact(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadRefs(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *Postgres) FindBySourceRef(ctx context.Context, source id.SourceSystem, externalID string) (*models.Contact, error) {
	row := s.runner(ctx).QueryRowContext(ctx, selectContact+`
		JOIN contact_source_refs r ON r.contact_id = c.id
		WHERE r.source_system = $1 AND r.external_id = $2`,
		source.String(), externalID)
	contact, err := scanContact(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadRefs(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *Postgres) ListActive(ctx context.Context) ([]*models.Contact, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, selectContact+` WHERE c.deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	for _, contact := range contacts {
		if err := s.loadRefs(ctx, contact); err != nil {
			return nil, err
		}
	}
	return contacts, nil
}

func (s *Postgres) SoftDelete(ctx context.Context, contactID id.ContactID, at time.Time) error {
	res, err := s.runner(ctx).ExecContext(ctx,
		`UPDATE contacts SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		contactID.String(), at)
	if err != nil {
		return fmt.Errorf("soft delete contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete rows affected: %w", err)
	}
	if affected == 0 {
		// Either missing or already tombstoned; distinguish for the caller.
		if _, err := s.FindByID(ctx, contactID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) loadRefs(ctx context.Context, contact *models.Contact) error {
	rows, err := s.runner(ctx).QueryContext(ctx,
		`SELECT source_system, external_id, first_seen FROM contact_source_refs
		 WHERE contact_id = $1 ORDER BY first_seen`,
		contact.ID.String())
	if err != nil {
		return fmt.Errorf("load source refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref models.SourceRef
		var source string
		if err := rows.Scan(&source, &ref.ExternalID, &ref.FirstSeen); err != nil {
			return fmt.Errorf("scan source ref: %w", err)
		}
		ref.Source = id.SourceSystem(source)
		contact.Sources = append(contact.Sources, ref)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		contact      models.Contact
		contactID    string
		identity     []byte
		source       string
		lockLevel    string
		subStatus    string
		subChannel   string
		subMethod    string
		subEffective sql.NullTime
		deletedAt    sql.NullTime
	)
	err := row.Scan(
		&contactID, &contact.FirstName, &contact.LastName, &contact.DisplayName, &identity,
		&source, &lockLevel, &contact.SubscriptionProtected,
		&subStatus, &subChannel, &subMethod, &subEffective,
		&contact.TotalValueCents, &contact.TransactionCount, &contact.QualityScore, &contact.AddressQuality,
		&contact.StaffEdits, &contact.CreatedAt, &contact.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan contact: %w", err)
	}

	parsed, err := id.ParseContactID(contactID)
	if err != nil {
		return nil, fmt.Errorf("stored contact id invalid: %w", err)
	}
	contact.ID = parsed

	var fields contactRow
	if err := json.Unmarshal(identity, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal identity fields: %w", err)
	}
	contact.Emails = fields.Emails
	contact.Phones = fields.Phones
	contact.Addresses = fields.Addresses

	contact.SourceSystem = id.SourceSystem(source)
	contact.LockLevel = models.LockLevel(lockLevel)
	contact.Subscription = models.Consent{
		Status:  models.SubscriptionStatus(subStatus),
		Channel: id.SourceSystem(subChannel),
		Method:  id.ConsentMethod(subMethod),
	}
	if subEffective.Valid {
		contact.Subscription.EffectiveDate = subEffective.Time
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		contact.DeletedAt = &t
	}
	return &contact, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
