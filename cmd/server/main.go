// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	consentservice "coalesce/internal/consent/service"
	contactservice "coalesce/internal/contact/service"
	"coalesce/internal/contact/store"
	"coalesce/internal/identity"
	"coalesce/internal/importer"
	"coalesce/internal/jwttoken"
	"coalesce/internal/match"
	"coalesce/internal/merge"
	"coalesce/internal/platform/config"
	"coalesce/internal/platform/httpserver"
	"coalesce/internal/platform/lock"
	"coalesce/internal/platform/logger"
	"coalesce/internal/platform/metrics"
	platformredis "coalesce/internal/platform/redis"
	"coalesce/internal/reviewqueue"
	httptransport "coalesce/internal/transport/http"
	"coalesce/pkg/platform/audit"
	"coalesce/pkg/platform/audit/publisher"
	auditmemory "coalesce/pkg/platform/audit/store/memory"
	auditpostgres "coalesce/pkg/platform/audit/store/postgres"
	auditworker "coalesce/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		contacts     store.ContactStore
		txr          store.Transactor
		auditStore   audit.Store
		healthChecks []func() error
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fatal(log, "open database", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			fatal(log, "ping database", err)
		}
		contacts = store.NewPostgres(db)
		txr = store.NewPostgresTx(db)
		auditStore = auditpostgres.New(db)
		healthChecks = append(healthChecks, db.Ping)
	} else {
		log.Warn("DATABASE_URL not set; using in-memory stores")
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
		fatal(log, "connect redis", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		redisLocker := lock.NewRedis(redisClient.Client, cfg.ContactLockTTL, 0)
		redisLocker.OnWait(m.LockWaits.Inc)
		locker = redisLocker
		healthChecks = append(healthChecks, func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(checkCtx)
		})
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := publisher.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			fatal(log, "connect kafka", err)
		}
		defer sink.Close()
		fanout, inbox := audit.NewFanout(auditStore, 0)
		auditStore = fanout
		go func() {
			if err := auditworker.NewWorker(sink, inbox, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err.Error())
			}
		}()
	}

	index := identity.NewIndex()
	if err := index.Rebuild(ctx, contacts); err != nil {
		fatal(log, "rebuild identity index", err)
	}

	review, err := reviewqueue.NewCSV(cfg.ReviewDir)
	if err != nil {
		fatal(log, "open review queue", err)
	}
	defer review.Close()

	processor := importer.New(importer.Config{
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

	handler := httptransport.NewHandler(httptransport.Config{
		Contacts:     contactservice.NewService(contacts, txr, index, locker, auditStore, log),
		Consent:      consentservice.NewService(contacts, auditStore, log),
		Processor:    processor,
		Audit:        auditStore,
		Review:       review,
		Logger:       log,
		Metrics:      m,
		JWTValidator: jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer),
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))
	log.Info("starting coalesce server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err.Error())
	os.Exit(1)
}
