// Package importer runs import batches through the match-evaluate-merge-audit
// sequence. Records are processed in order so a later record can match a
// contact an earlier record just created; each record is one logical
// transaction that fully commits or fully rolls back.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"coalesce/internal/contact/models"
	"coalesce/internal/contact/store"
	"coalesce/internal/identity"
	"coalesce/internal/match"
	"coalesce/internal/merge"
	"coalesce/internal/platform/lock"
	"coalesce/internal/platform/metrics"
	"coalesce/internal/reviewqueue"
	"coalesce/internal/score"
	id "coalesce/pkg/domain"
	dErrors "coalesce/pkg/domain-errors"
	"coalesce/pkg/platform/audit"
	"coalesce/pkg/platform/sentinel"
)

// Outcome labels for summary counts and metrics.
const (
	OutcomeCreated = "created"
	OutcomeMerged  = "merged"
	OutcomeBlocked = "blocked"
	OutcomeFlagged = "flagged"
	OutcomeErrored = "errored"
	OutcomeNoop    = "noop"
)

// RecordResult is one line of the downloadable batch detail. Nothing is ever
// silently dropped: every record lands here with its outcome.
type RecordResult struct {
	Source     id.SourceSystem `json:"source"`
	ExternalID string          `json:"external_id"`
	Outcome    string          `json:"outcome"`
	ContactID  string          `json:"contact_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// Summary is the end-of-batch report.
type Summary struct {
	BatchID id.BatchID     `json:"batch_id"`
	Created int            `json:"created"`
	Merged  int            `json:"merged"`
	Blocked int            `json:"blocked"`
	Flagged int            `json:"flagged"`
	Errored int            `json:"errored"`
	Noops   int            `json:"noops"`
	Details []RecordResult `json:"details"`
}

// Processor wires the engine parts together for one deployment.
type Processor struct {
	contacts store.ContactStore
	txr      store.Transactor
	index    *identity.Index
	matcher  *match.Matcher
	engine   *merge.Engine
	auditLog audit.Store
	locker   lock.ContactLocker
	review   reviewqueue.Queue
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Config carries the processor's collaborators; all are required except Now.
type Config struct {
	Contacts store.ContactStore
	Tx       store.Transactor
	Index    *identity.Index
	Matcher  *match.Matcher
	Engine   *merge.Engine
	Audit    audit.Store
	Locker   lock.ContactLocker
	Review   reviewqueue.Queue
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// New builds a processor.
func New(cfg Config) *Processor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		contacts: cfg.Contacts,
		txr:      cfg.Tx,
		index:    cfg.Index,
		matcher:  cfg.Matcher,
		engine:   cfg.Engine,
		auditLog: cfg.Audit,
		locker:   cfg.Locker,
		review:   cfg.Review,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		tracer:   otel.Tracer("coalesce/importer"),
		now:      now,
	}
}

// RunBatch processes records in order and returns the summary. A failed
// record is recorded and processing continues; only loss of the underlying
// store aborts the whole batch.
func (p *Processor) RunBatch(ctx context.Context, batchID id.BatchID, records []models.IncomingRecord) (*Summary, error) {
	started := p.now()
	summary := &Summary{BatchID: batchID}

	for i := range records {
		record := &records[i]
		result, fatal := p.processRecord(ctx, batchID, record)
		summary.add(result)
		p.metrics.RecordOutcome(result.Outcome)

		if fatal != nil {
			p.logger.ErrorContext(ctx, "batch aborted: storage unavailable",
				"batch_id", batchID.String(),
				"processed", i+1,
				"error", fatal.Error(),
			)
			return summary, fatal
		}
	}

	p.metrics.BatchDuration.Observe(p.now().Sub(started).Seconds())
	p.logger.InfoContext(ctx, "batch complete",
		"batch_id", batchID.String(),
		"created", summary.Created,
		"merged", summary.Merged,
		"blocked", summary.Blocked,
		"flagged", summary.Flagged,
		"errored", summary.Errored,
		"noops", summary.Noops,
	)
	return summary, nil
}

func (s *Summary) add(r RecordResult) {
	s.Details = append(s.Details, r)
	switch r.Outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeMerged:
		s.Merged++
	case OutcomeBlocked:
		s.Blocked++
	case OutcomeFlagged:
		s.Flagged++
	case OutcomeErrored:
		s.Errored++
	case OutcomeNoop:
		s.Noops++
	}
}

// processRecord runs the full sequence for one record. The second return is
// non-nil only for batch-fatal conditions (store gone, context cancelled).
func (p *Processor) processRecord(ctx context.Context, batchID id.BatchID, record *models.IncomingRecord) (RecordResult, error) {
	ctx, span := p.tracer.Start(ctx, "importer.record",
		trace.WithAttributes(
			attribute.String("source", record.Source.String()),
			attribute.String("external_id", record.ExternalID),
		))
	defer span.End()

	result := RecordResult{Source: record.Source, ExternalID: record.ExternalID}

	if err := ctx.Err(); err != nil {
		result.Outcome = OutcomeErrored
		result.Reason = "batch cancelled"
		return result, err
	}

	if err := record.Validate(); err != nil {
		return p.rejectRecord(ctx, batchID, record, err), nil
	}

	// Idempotency fast path: this exact (source, external_id) has been
	// processed before. Re-merge under lock; an unchanged record is a no-op
	// producing zero new audit entries.
	existing, err := p.contacts.FindBySourceRef(ctx, record.Source, record.ExternalID)
	switch {
	case err == nil:
		return p.mergeInto(ctx, batchID, record, existing.ID, "re-import of known record")
	case errors.Is(err, sentinel.ErrNotFound):
		// First sighting; fall through to matching.
	case errors.Is(err, sentinel.ErrUnavailable):
		result.Outcome = OutcomeErrored
		result.Reason = err.Error()
		return result, err
	default:
		return p.recordError(ctx, batchID, record, dErrors.Wrap(dErrors.CodeInternal, "source ref lookup", err)), nil
	}

	candidates, err := p.matcher.Match(ctx, record)
	if err != nil {
		return p.recordError(ctx, batchID, record, dErrors.Wrap(dErrors.CodeInternal, "candidate match", err)), nil
	}

	if len(candidates) == 0 {
		return p.createContact(ctx, batchID, record)
	}

	if match.Ambiguous(candidates) {
		return p.flagConflict(ctx, batchID, record, candidates,
			dErrors.New(dErrors.CodeAmbiguousMatch, "near-equal candidates for different people")), nil
	}

	top := candidates[0]
	if !top.Result.Tier.AutoApply() {
		// A weakly matched record that carries its own disjoint email and
		// agrees with no candidate's name is the shared-phone household
		// shape: a second person to create, not an enrichment to park.
		if describesNewPerson(record, candidates) {
			return p.createContact(ctx, batchID, record)
		}
		return p.deferToReview(ctx, batchID, record, top), nil
	}

	return p.mergeInto(ctx, batchID, record, top.Contact.ID, top.Result.Reason)
}

// rejectRecord handles records that fail the adapter contract. Missing
// identity goes to the review queue for manual create-or-skip; everything is
// audited.
func (p *Processor) rejectRecord(ctx context.Context, batchID id.BatchID, record *models.IncomingRecord, cause error) RecordResult {
	if dErrors.HasCode(cause, dErrors.CodeMissingIdentity) {
		item := reviewqueue.Item{
			BatchID:    batchID,
			Source:     record.Source,
			ExternalID: record.ExternalID,
			Tier:       score.TierNeedsReview,
			Reason:     "no usable identity field; manual create-or-skip",
		}
		if err := p.review.Push(ctx, item); err != nil {
			p.logger.ErrorContext(ctx, "review queue push failed",
				"batch_id", batchID.String(),
				"external_id", record.ExternalID,
				"error", err.Error(),
			)
		}
		p.metrics.ReviewQueued.Inc()
	}
	return p.recordError(ctx, batchID, record, cause)
}

func (p *Processor) recordError(ctx context.Context, batchID id.BatchID, record *models.IncomingRecord, cause error) RecordResult {
	entry := audit.Entry{
		BatchID:   batchID,
		Decision:  audit.DecisionErrored,
		Actor:     audit.ImportActor(record.Source),
		Timestamp: p.now(),
		Fields:    []string{},
		Reason:    cause.Error(),
		Before:    audit.Snapshot(record),
	}
	if err := p.auditLog.Append(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed for errored record",
			"batch_id", batchID.String(),
			"external_id", record.ExternalID,
			"error", err.Error(),
		)
	}
	return RecordResult{
		Source:     record.Source,
		ExternalID: record.ExternalID,
		Outcome:    OutcomeErrored,
		Reason:     cause.Error(),
	}
}

// createContact handles the zero-candidate path: a brand-new contact, no
// guard needed, indexed synchronously so the next record in this batch can
// match it.
func (p *Processor) createContact(ctx context.Context, batchID id.BatchID, record *models.IncomingRecord) (RecordResult, error) {
	now := p.now()
	blank := &models.Contact{
		ID:           id.NewContactID(),
		SourceSystem: record.Source,
		LockLevel:    models.LockUnlocked,
		Subscription: models.Consent{Status: models.SubscriptionUnknown},
		CreatedAt:    now,
	}
	outcome := p.engine.Apply(blank, record, now)
	contact := outcome.Contact

	// A record with an email but no name gets a derived-name pass:
	// firstname.lastname@ shapes apply outright, weaker guesses wait for a
	// reviewer once the contact exists.
	var nameGuess *score.NameGuess
	if contact.FirstName == "" && contact.LastName == "" && record.Email != "" {
		guess := score.NameFromEmail(record.Email)
		if guess.Tier.AutoApply() {
			contact.FirstName = guess.First
			contact.LastName = guess.Last
			outcome.ChangedFields = append(outcome.ChangedFields, string(models.FieldName))
		} else if guess.First != "" || guess.OrgCandidate {
			nameGuess = &guess
		}
	}

	err := p.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := p.contacts.Create(ctx, contact); err != nil {
			return err
		}
		return p.auditLog.Append(ctx, audit.Entry{
			BatchID:   batchID,
			ContactID: contact.ID,
			Decision:  audit.DecisionCreated,
			Actor:     audit.ImportActor(record.Source),
			Timestamp: now,
			After:     audit.Snapshot(contact),
			Fields:    outcome.ChangedFields,
		})
	})
	if err != nil {
		// A concurrent batch registered the same (source, external_id)
		// between our lookup and the insert. That batch owns the record;
		// success-no-op here.
		if errors.Is(err, sentinel.ErrDuplicate) {
			return RecordResult{
				Source:     record.Source,
				ExternalID: record.ExternalID,
				Outcome:    OutcomeNoop,
				Reason:     "external id already registered",
			}, nil
		}
		if errors.Is(err, sentinel.ErrUnavailable) {
			return RecordResult{Source: record.Source, ExternalID: record.ExternalID, Outcome: OutcomeErrored, Reason: err.Error()}, err
		}
		return p.recordError(ctx, batchID, record, dErrors.Wrap(dErrors.CodeMergeIntegrity, "create rolled back", err)), nil
	}

	p.index.Add(contact)
	p.metrics.ContactsCreated.Inc()

	if nameGuess != nil {
		reason := "derived-name guess needs confirmation: " + nameGuess.Reason
		if nameGuess.First != "" {
			reason = "derived first name " + nameGuess.First + " needs confirmation"
		}
		item := reviewqueue.Item{
			BatchID:      batchID,
			Source:       record.Source,
			ExternalID:   record.ExternalID,
			CandidateIDs: []id.ContactID{contact.ID},
			Tier:         nameGuess.Tier,
			Reason:       reason,
		}
		if err := p.review.Push(ctx, item); err != nil {
			p.logger.ErrorContext(ctx, "review queue push failed",
				"batch_id", batchID.String(),
				"external_id", record.ExternalID,
				"error", err.Error(),
			)
		}
		p.metrics.ReviewQueued.Inc()
	}

	return RecordResult{
		Source:     record.Source,
		ExternalID: record.ExternalID,
		Outcome:    OutcomeCreated,
		ContactID:  contact.ID.String(),
	}, nil
}

// flagConflict defers ambiguous matches to the conflict queue with the
// contact left unmodified. Auto-merging two different people corrupts the
// financial trail irreversibly, so this path exists to make sure it never
// happens silently.
func (p *Processor) flagConflict(ctx context.Context, batchID id.BatchID, record *models.IncomingRecord, candidates []match.Candidate, cause error) RecordResult {
	ids := make([]id.ContactID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Contact.ID)
	}

	item := reviewqueue.Item{
		BatchID:      batchID,
		Source:       record.Source,
		ExternalID:   record.ExternalID,
		CandidateIDs: ids,
		Tier:         score.TierNeedsReview,
		Reason:       cause.Error(),
	}
	if err := p.review.Push(ctx, item); err != nil {
		p.logger.ErrorContext(ctx, "review queue push failed",
			"batch_id", batchID.String(),
			"external_id", record.ExternalID,
			"error", err.Error(),
		)
	}

	entry := audit.Entry{
		BatchID:   batchID,
		ContactID: candidates[0].Contact.ID,
		Decision:  audit.DecisionConflictFlagged,
		Actor:     audit.ImportActor(record.Source),
		Timestamp: p.now(),
		Before:    audit.Snapshot(record),
		Fields:    fragmentNames(candidates[0].MatchedFields),
		Reason:    cause.Error(),
	}
	if err := p.auditLog.Append(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed for conflict",
			"batch_id", batchID.String(),
			"external_id", record.ExternalID,
			"error", err.Error(),
		)
	}

	p.metrics.MergeConflicts.Inc()
	p.metrics.ReviewQueued.Inc()
	return RecordResult{
		Source:     record.Source,
		ExternalID: record.ExternalID,
		Outcome:    OutcomeFlagged,
		ContactID:  candidates[0].Contact.ID.String(),
		Reason:     cause.Error(),
	}
}

// deferToReview handles a single best candidate below auto-apply confidence.
func (p *Processor) deferToReview(ctx context.Context, batchID id.BatchID, record *models.IncomingRecord, top match.Candidate) RecordResult {
	return p.flagConflict(ctx, batchID, record, []match.Candidate{top},
		dErrors.New(dErrors.CodeAmbiguousMatch, top.Result.Reason+" ("+string(top.Result.Tier)+")"))
}

// describesNewPerson reports whether a below-threshold record carries its own
// disjoint identity: an email held by no candidate and a name agreeing with
// no candidate.
func describesNewPerson(record *models.IncomingRecord, candidates []match.Candidate) bool {
	if record.Email == "" {
		return false
	}
	for _, c := range candidates {
		if c.Signals.EmailMatched || c.Signals.NameMatched {
			return false
		}
	}
	return true
}

// mergeInto applies the record to an existing contact under the per-contact
// exclusive lock.
func (p *Processor) mergeInto(ctx context.Context, batchID id.BatchID, record *models.IncomingRecord, contactID id.ContactID, matchReason string) (RecordResult, error) {
	release, err := p.locker.Acquire(ctx, contactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, context.Canceled) {
			return RecordResult{Source: record.Source, ExternalID: record.ExternalID, Outcome: OutcomeErrored, Reason: err.Error()}, err
		}
		return p.recordError(ctx, batchID, record, dErrors.Wrap(dErrors.CodeInternal, "acquire contact lock", err)), nil
	}
	defer release()

	// Re-read under the lock; the matcher's copy may predate a concurrent
	// merge.
	contact, err := p.contacts.FindByID(ctx, contactID)
	if err != nil {
		return p.recordError(ctx, batchID, record, dErrors.Wrap(dErrors.CodeInternal, "reload contact", err)), nil
	}
	if contact.IsTombstoned() {
		return RecordResult{
			Source:     record.Source,
			ExternalID: record.ExternalID,
			Outcome:    OutcomeNoop,
			ContactID:  contactID.String(),
			Reason:     "contact is tombstoned",
		}, nil
	}

	now := p.now()
	outcome := p.engine.Apply(contact, record, now)

	if !outcome.Changed && len(outcome.BlockedFields) == 0 {
		// Re-run of an unchanged record: zero net-new audit entries.
		return RecordResult{
			Source:     record.Source,
			ExternalID: record.ExternalID,
			Outcome:    OutcomeNoop,
			ContactID:  contactID.String(),
		}, nil
	}

	err = p.txr.RunInTx(ctx, func(ctx context.Context) error {
		if outcome.Changed {
			if err := p.contacts.Update(ctx, outcome.Contact); err != nil {
				return err
			}
			if err := p.auditLog.Append(ctx, audit.Entry{
				BatchID:   batchID,
				ContactID: contactID,
				Decision:  audit.DecisionMatched,
				Actor:     audit.ImportActor(record.Source),
				Timestamp: now,
				Before:    audit.Snapshot(contact),
				After:     audit.Snapshot(outcome.Contact),
				Fields:    outcome.ChangedFields,
				Reason:    matchReason,
			}); err != nil {
				return err
			}
		}
		if len(outcome.BlockedFields) > 0 {
			if err := p.auditLog.Append(ctx, audit.Entry{
				BatchID:   batchID,
				ContactID: contactID,
				Decision:  audit.DecisionMergeBlocked,
				Actor:     audit.ImportActor(record.Source),
				Timestamp: now,
				Fields:    outcome.BlockedFields,
				Reason:    "denied by " + string(contact.LockLevel) + " policy",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return RecordResult{Source: record.Source, ExternalID: record.ExternalID, Outcome: OutcomeErrored, Reason: err.Error()}, err
		}
		return p.recordError(ctx, batchID, record,
			dErrors.Wrap(dErrors.CodeMergeIntegrity, "merge rolled back", err)), nil
	}

	if outcome.Changed {
		p.index.Add(outcome.Contact)
		return RecordResult{
			Source:     record.Source,
			ExternalID: record.ExternalID,
			Outcome:    OutcomeMerged,
			ContactID:  contactID.String(),
			Reason:     matchReason,
		}, nil
	}
	return RecordResult{
		Source:     record.Source,
		ExternalID: record.ExternalID,
		Outcome:    OutcomeBlocked,
		ContactID:  contactID.String(),
		Reason:     "all requested writes denied: " + join(outcome.BlockedFields),
	}, nil
}

func fragmentNames(kinds []identity.FragmentKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func join(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}
