package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	httpapi "docverify/internal/http"
	"docverify/internal/platform/config"
	platformredis "docverify/internal/platform/redis"
	"docverify/internal/verification/ports"
	"docverify/internal/verification/store"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/consumer"
	"docverify/pkg/platform/audit/publisher"
	kafkastore "docverify/pkg/platform/audit/store/kafka"
	auditmemory "docverify/pkg/platform/audit/store/memory"
	auditpostgres "docverify/pkg/platform/audit/store/postgres"
)

const (
	auditBufferSize        = 1024
	auditTopicPartitions   = 3
	auditTopicReplications = 1
)

// infra holds the storage and audit backends selected by configuration.
// Every backend falls back to an in-memory implementation when unset.
type infra struct {
	db      *sql.DB
	records ports.ResultStore
	cache   ports.ResultCache
	audit   *publisher.Publisher
	checks  map[string]httpapi.HealthCheck
	closers []func()
}

func newInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{checks: make(map[string]httpapi.HealthCheck)}

	if err := in.openRecords(ctx, cfg.Database, log); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openCache(ctx, cfg.Redis, log); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openAudit(ctx, cfg.Kafka, log); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *infra) openRecords(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) error {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, verification records are kept in memory")
		in.records = store.NewInMemoryStore()
		return nil
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	in.closers = append(in.closers, func() { _ = db.Close() })
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}
	in.db = db
	in.records = store.NewPostgres(db)
	in.checks["postgres"] = db.PingContext
	log.Info("using postgres verification store")
	return nil
}

func (in *infra) openCache(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) error {
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		return err
	}
	if client == nil {
		in.cache = store.NewInMemoryCache()
		return nil
	}
	in.closers = append(in.closers, func() { _ = client.Close() })
	in.cache = store.NewRedisCache(client.Client)
	in.checks["redis"] = client.Health
	log.Info("using redis result cache")
	return nil
}

func (in *infra) openAudit(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) error {
	var sink audit.Store
	switch {
	case len(cfg.Brokers) == 0 && in.db != nil:
		ps := auditpostgres.New(in.db)
		if err := ps.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = ps
		log.Info("writing audit events to postgres")
	case len(cfg.Brokers) == 0:
		sink = auditmemory.NewInMemoryStore()
	default:
		ks, err := kafkastore.New(cfg.Brokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		in.closers = append(in.closers, ks.Close)
		if err := ks.EnsureTopic(ctx, auditTopicPartitions, auditTopicReplications); err != nil {
			return err
		}
		in.checks["kafka"] = ks.Ping
		sink = ks
		log.Info("publishing audit events to kafka", "topic", cfg.AuditTopic)
		if in.db != nil {
			if err := in.startMaterializer(ctx, cfg, log); err != nil {
				return err
			}
		}
	}

	in.audit = publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	// Drain queued events before the sink closes.
	in.closers = append(in.closers, func() { _ = in.audit.Close() })
	return nil
}

// startMaterializer projects the Kafka audit topic into Postgres so the
// trail stays queryable.
func (in *infra) startMaterializer(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) error {
	projection := auditpostgres.New(in.db)
	if err := projection.EnsureSchema(ctx); err != nil {
		return err
	}
	c, err := consumer.New(cfg.Brokers, cfg.AuditTopic, cfg.ConsumerGroup, projection, log)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Run(runCtx); err != nil {
			log.ErrorContext(runCtx, "audit materializer stopped", "error", err)
		}
	}()
	in.closers = append(in.closers, func() {
		cancel()
		<-done
		c.Close()
	})
	log.Info("materializing audit topic into postgres", "group", cfg.ConsumerGroup)
	return nil
}

// Close releases backends in reverse order of creation.
func (in *infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
}
