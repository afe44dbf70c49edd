// Package reviewqueue emits the structured export of records that failed to
// reach auto-apply confidence. One row per ambiguous record, with the
// candidate contact ids, the confidence tier, and the specific reason. Pure
// output artifact for human review; the engine never reads it back.
package reviewqueue

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"coalesce/internal/score"
	id "coalesce/pkg/domain"
)

// Item is one record deferred to a human.
type Item struct {
	BatchID      id.BatchID
	Source       id.SourceSystem
	ExternalID   string
	CandidateIDs []id.ContactID
	Tier         score.Tier
	Reason       string
}

// Queue receives deferred items. Implementations must be safe for use from
// concurrent batches.
type Queue interface {
	Push(ctx context.Context, item Item) error
}

// CSVQueue appends items to one CSV file per batch under a directory.
type CSVQueue struct {
	dir string

	mu    sync.Mutex
	files map[id.BatchID]*csv.Writer
	open  []*os.File
}

// NewCSV creates the export directory if needed.
func NewCSV(dir string) (*CSVQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create review queue dir: %w", err)
	}
	return &CSVQueue{dir: dir, files: make(map[id.BatchID]*csv.Writer)}, nil
}

var header = []string{"batch_id", "source", "external_id", "candidate_contact_ids", "tier", "reason"}

func (q *CSVQueue) Push(_ context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	w, ok := q.files[item.BatchID]
	if !ok {
		f, err := os.Create(q.Path(item.BatchID))
		if err != nil {
			return fmt.Errorf("create review queue file: %w", err)
		}
		w = csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			f.Close()
			return fmt.Errorf("write review queue header: %w", err)
		}
		q.files[item.BatchID] = w
		q.open = append(q.open, f)
	}

	ids := make([]string, len(item.CandidateIDs))
	for i, cid := range item.CandidateIDs {
		ids[i] = cid.String()
	}
	row := []string{
		item.BatchID.String(),
		item.Source.String(),
		item.ExternalID,
		strings.Join(ids, ";"),
		string(item.Tier),
		item.Reason,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write review queue row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Path returns where the batch's export lands, for the download endpoint.
func (q *CSVQueue) Path(batchID id.BatchID) string {
	return filepath.Join(q.dir, batchID.String()+".csv")
}

// Close releases every open export file.
func (q *CSVQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var firstErr error
	for _, w := range q.files {
		w.Flush()
	}
	for _, f := range q.open {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	q.open = nil
	q.files = make(map[id.BatchID]*csv.Writer)
	return firstErr
}

// Memory collects items for tests.
type Memory struct {
	mu    sync.Mutex
	items []Item
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Push(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

// Items returns a copy of everything pushed so far.
func (m *Memory) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items...)
}
