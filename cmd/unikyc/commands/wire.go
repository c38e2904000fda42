package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	"unikyc/internal/cipher"
	namecache "unikyc/internal/identity/adapters/cache"
	"unikyc/internal/identity/adapters/static"
	identitymetrics "unikyc/internal/identity/metrics"
	"unikyc/internal/identity/ports"
	"unikyc/internal/identity/resolver"
	kycmetrics "unikyc/internal/kyc/metrics"
	"unikyc/internal/kyc/service"
	kycmemory "unikyc/internal/kyc/store/memory"
	kycpostgres "unikyc/internal/kyc/store/postgres"
	"unikyc/internal/platform/config"
	"unikyc/internal/platform/kafka"
	"unikyc/internal/platform/postgres"
	"unikyc/internal/platform/redis"
	contentmemory "unikyc/internal/storage/memory"
	contents3 "unikyc/internal/storage/s3"
	"unikyc/internal/timelock/adapters/simnet"
	"unikyc/internal/timelock/coordinator"
	tlmetrics "unikyc/internal/timelock/metrics"
	tlmemory "unikyc/internal/timelock/store/memory"
	tlredis "unikyc/internal/timelock/store/redis"
	audit "unikyc/pkg/platform/audit"
	auditkafka "unikyc/pkg/platform/audit/kafka"
	"unikyc/pkg/platform/audit/publishers/compliance"
	"unikyc/pkg/platform/audit/publishers/ops"
	"unikyc/pkg/platform/audit/publishers/security"
	auditmemory "unikyc/pkg/platform/audit/store/memory"
	auditpostgres "unikyc/pkg/platform/audit/store/postgres"
	"unikyc/pkg/platform/circuit"
)

// app holds the wired engine and the infrastructure it owns.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *kgo.Client

	chain       *simnet.Chain
	network     *simnet.Network
	coordinator *coordinator.Coordinator
	kyc         *service.Service

	auditStore audit.Store
	security   *security.Publisher

	timelockMetrics *tlmetrics.Metrics
}

// build connects optional infrastructure and wires the engine. Metrics are
// only registered when instrumented is set, so one-shot commands stay quiet.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger, instrumented bool) (*app, error) {
	a := &app{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	if a.pool, err = postgres.Open(ctx, cfg.Postgres); err != nil {
		return nil, err
	}
	if a.pool != nil {
		if err := postgres.Migrate(ctx, a.pool, log); err != nil {
			return nil, err
		}
	}
	if a.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if a.producer, err = kafka.NewClient(ctx, cfg.Kafka); err != nil {
		return nil, err
	}
	if a.producer != nil && cfg.Kafka.CreateTopics {
		if err := kafka.EnsureTopics(ctx, a.producer, cfg.Kafka.TopicPartition, cfg.Kafka.CallbackTopic, cfg.Kafka.AuditTopic); err != nil {
			return nil, err
		}
	}

	var (
		idMetrics   *identitymetrics.Metrics
		kycMetrics  *kycmetrics.Metrics
		opsMetrics  *ops.Metrics
		compMetrics *compliance.Metrics
	)
	if instrumented {
		idMetrics = identitymetrics.New()
		kycMetrics = kycmetrics.New()
		a.timelockMetrics = tlmetrics.New()
		opsMetrics = ops.NewMetrics()
		compMetrics = compliance.NewMetrics()
	}

	a.auditStore = a.selectAuditStore()
	a.security = security.New(security.NewRingBuffer(10000))
	sampler := ops.NewSampler(1.0)
	sampler.SetRate(string(audit.EventKycStatusChecked), 0.1)
	opsTracker := ops.New(a.auditStore,
		ops.WithLogger(log),
		ops.WithMetrics(opsMetrics),
		ops.WithSampler(sampler),
	)
	complianceAuditor := compliance.New(a.auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compMetrics),
	)

	names, err := a.nameService(idMetrics)
	if err != nil {
		return nil, err
	}
	res := resolver.New(names, resolver.WithLogger(log), resolver.WithMetrics(idMetrics))

	content, err := a.contentStore()
	if err != nil {
		return nil, err
	}

	a.chain = simnet.NewChain(cfg.Chain.StartHeight, cfg.Chain.BlockTime)
	a.network = simnet.NewNetwork(a.chain)
	var requests coordinator.RequestStore = tlmemory.New()
	if a.redis != nil {
		requests = tlredis.New(a.redis.Client)
	}
	a.coordinator = coordinator.New(a.network, a.chain, requests,
		coordinator.WithBlockTime(cfg.Chain.BlockTime),
		coordinator.WithLogger(log),
		coordinator.WithMetrics(a.timelockMetrics),
		coordinator.WithSecurityAuditor(a.security),
		coordinator.WithOpsTracker(opsTracker),
	)

	var records service.Store = kycmemory.New()
	if a.pool != nil {
		records = kycpostgres.New(a.pool)
	}
	a.kyc = service.New(records, res, cipher.New(), content, a.coordinator,
		service.WithValidity(cfg.KYC.Validity),
		service.WithDefaultScheme(cipher.Scheme{TotalShares: cfg.KYC.TotalShares, RequiredShares: cfg.KYC.RequiredShares}),
		service.WithGasBudget(cfg.KYC.GasBudget),
		service.WithMinLiveness(cfg.KYC.MinLiveness),
		service.WithLogger(log),
		service.WithMetrics(kycMetrics),
		service.WithOpsTracker(opsTracker),
		service.WithComplianceAuditor(complianceAuditor),
	)

	log.InfoContext(ctx, "engine wired",
		"record_store", storeName(a.pool != nil, "postgres", "memory"),
		"request_store", storeName(a.redis != nil, "redis", "memory"),
		"content_store", cfg.Storage.Backend,
		"kafka", a.producer != nil,
	)
	ok = true
	return a, nil
}

// selectAuditStore prefers Postgres, then Kafka, then process memory.
func (a *app) selectAuditStore() audit.Store {
	switch {
	case a.pool != nil:
		return auditpostgres.New(a.pool)
	case a.producer != nil:
		return auditkafka.New(a.producer, a.cfg.Kafka.AuditTopic)
	default:
		return auditmemory.NewInMemoryStore()
	}
}

func (a *app) nameService(m *identitymetrics.Metrics) (ports.NameService, error) {
	names, err := static.New(a.cfg.KYC.StaticNames)
	if err != nil {
		return nil, fmt.Errorf("kyc.static_names: %w", err)
	}
	if a.redis == nil {
		return names, nil
	}
	return namecache.New(names, a.redis.Client,
		namecache.WithTTL(a.cfg.Redis.NameCacheTTL),
		namecache.WithBreaker(circuit.New("name-cache", circuit.WithCooldown(30*time.Second))),
		namecache.WithLogger(a.logger),
		namecache.WithMetrics(m),
	), nil
}

func (a *app) contentStore() (service.ContentStore, error) {
	switch a.cfg.Storage.Backend {
	case "memory":
		return contentmemory.New(), nil
	case "s3":
		return contents3.NewSpace(contents3.Config{
			Bucket:   a.cfg.Storage.Bucket,
			Prefix:   a.cfg.Storage.Prefix,
			Region:   a.cfg.Storage.Region,
			Endpoint: a.cfg.Storage.Endpoint,
		}), nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", a.cfg.Storage.Backend)
}

func (a *app) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func storeName(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
