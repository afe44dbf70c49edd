// The importer binary runs one or more batch files through the engine
// without going over HTTP. Each file is one batch: JSON Lines, one incoming
// record per line. Batch IDs are derived from the file name so re-running a
// file re-runs the same logical batch.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"coalesce/internal/contact/models"
	"coalesce/internal/contact/store"
	"coalesce/internal/identity"
	"coalesce/internal/importer"
	"coalesce/internal/match"
	"coalesce/internal/merge"
	"coalesce/internal/platform/config"
	"coalesce/internal/platform/lock"
	"coalesce/internal/platform/logger"
	"coalesce/internal/platform/metrics"
	platformredis "coalesce/internal/platform/redis"
	"coalesce/internal/reviewqueue"
	id "coalesce/pkg/domain"
	"coalesce/pkg/platform/audit"
	auditmemory "coalesce/pkg/platform/audit/store/memory"
	auditpostgres "coalesce/pkg/platform/audit/store/postgres"
)

func main() {
	concurrency := flag.Int("concurrency", 1, "batch files processed in parallel")
	flag.Parse()
	files := flag.Args()

	log := logger.New()
	if len(files) == 0 {
		log.Error("usage: importer [-concurrency N] batch.jsonl [batch.jsonl ...]")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	proc, cleanup, err := buildProcessor(ctx, cfg, log)
	if err != nil {
		log.Error("importer setup failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanup()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	summaries := make([]*importer.Summary, len(files))
	for i, file := range files {
		g.Go(func() error {
			batchID, records, err := readBatchFile(file)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			summary, err := proc.RunBatch(ctx, batchID, records)
			summaries[i] = summary
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			return nil
		})
	}

	runErr := g.Wait()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for i, summary := range summaries {
		if summary == nil {
			continue
		}
		if err := enc.Encode(map[string]any{"file": files[i], "summary": summary}); err != nil {
			log.Error("write summary", "error", err.Error())
		}
	}

	if runErr != nil {
		log.Error("import failed", "error", runErr.Error())
		os.Exit(1)
	}
}

// buildProcessor assembles the same engine the server runs, minus HTTP.
func buildProcessor(ctx context.Context, cfg config.Config, log *slog.Logger) (*importer.Processor, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var (
		contacts   store.ContactStore
		txr        store.Transactor
		auditStore audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open database: %w", err)
		}
		cleanups = append(cleanups, func() { db.Close() })
		if err := db.PingContext(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("ping database: %w", err)
		}
		contacts = store.NewPostgres(db)
		txr = store.NewPostgresTx(db)
		auditStore = auditpostgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set; results will not survive the process")
		contacts = store.NewInMemory()
		txr = store.NoopTx{}
		auditStore = auditmemory.NewInMemoryStore()
	}

	m := metrics.New()

	memLocker := lock.NewMemory()
	memLocker.OnWait(m.LockWaits.Inc)
	var locker lock.ContactLocker = memLocker
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		cleanups = append(cleanups, func() { redisClient.Close() })
		redisLocker := lock.NewRedis(redisClient.Client, cfg.ContactLockTTL, 0)
		redisLocker.OnWait(m.LockWaits.Inc)
		locker = redisLocker
	}

	index := identity.NewIndex()
	if err := index.Rebuild(ctx, contacts); err != nil {
		return nil, cleanup, fmt.Errorf("rebuild identity index: %w", err)
	}

	review, err := reviewqueue.NewCSV(cfg.ReviewDir)
	if err != nil {
		return nil, cleanup, fmt.Errorf("open review queue: %w", err)
	}
	cleanups = append(cleanups, func() { review.Close() })

	proc := importer.New(importer.Config{
		Contacts: contacts,
		Tx:       txr,
		Index:    index,
		Matcher:  match.New(index, contacts),
		Engine:   merge.New(nil),
		Audit:    auditStore,
		Locker:   locker,
		Review:   review,
		Metrics:  m,
		Logger:   log,
	})
	return proc, cleanup, nil
}

// batchNamespace scopes file-derived batch IDs.
var batchNamespace = uuid.MustParse("9f2c3c1e-52d7-4d2e-9a77-5a2f1b6c8d41")

// readBatchFile parses a JSON Lines batch file. The batch ID is derived from
// the base file name, so the same file always maps to the same batch.
func readBatchFile(path string) (id.BatchID, []models.IncomingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return id.BatchID{}, nil, err
	}
	defer f.Close()

	batchID := id.BatchID(uuid.NewSHA1(batchNamespace, []byte(filepath.Base(path))))

	var records []models.IncomingRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record models.IncomingRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return batchID, nil, fmt.Errorf("line %d: %w", line, err)
		}
		record.Raw = append(json.RawMessage(nil), raw...)
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return batchID, nil, err
	}
	return batchID, records, nil
}
