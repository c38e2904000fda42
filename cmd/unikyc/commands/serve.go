package commands

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	jwttoken "unikyc/internal/jwt_token"
	kychandler "unikyc/internal/kyc/handler"
	"unikyc/internal/platform/httpserver"
	"unikyc/internal/platform/kafka"
	platformmetrics "unikyc/internal/platform/metrics"
	"unikyc/internal/ratelimit"
	tlkafka "unikyc/internal/timelock/adapters/kafka"
	"unikyc/internal/timelock/dispatch"
	"unikyc/pkg/platform/audit/worker"
	"unikyc/pkg/platform/httputil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the unlock dispatchers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := build(ctx, cfg, log, true)
		if err != nil {
			return err
		}
		defer a.Close()

		// With Kafka configured the poller publishes released material and the
		// relay consumes it; otherwise the poller calls the engine directly.
		var (
			sink  dispatch.Sink = dispatch.NewHandlerSink(a.kyc)
			relay *tlkafka.Relay
		)
		if a.producer != nil {
			consumer, err := kafka.NewClient(ctx, cfg.Kafka,
				kgo.ConsumerGroup(cfg.Kafka.ConsumerGroup),
				kgo.ConsumeTopics(cfg.Kafka.CallbackTopic),
				kgo.DisableAutoCommit(),
			)
			if err != nil {
				return err
			}
			defer consumer.Close()
			sink = tlkafka.NewPublisher(a.producer, cfg.Kafka.CallbackTopic)
			relay = tlkafka.NewRelay(consumer, a.kyc, log, a.timelockMetrics)
		}
		poller := dispatch.NewPoller(a.coordinator, a.network, sink,
			dispatch.WithInterval(cfg.Chain.PollInterval),
			dispatch.WithPollerLogger(log),
			dispatch.WithPollerMetrics(a.timelockMetrics),
		)
		auditWorker := worker.NewWorker(a.auditStore, a.security.Buffer(), 0, log)

		srv := httpserver.New(cfg.Server.Addr, a.routes(platformmetrics.New()), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.InfoContext(gctx, "starting unikyc", "addr", cfg.Server.Addr, "env", cfg.Env)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error { return ignoreCancel(poller.Run(gctx)) })
		g.Go(func() error { return ignoreCancel(auditWorker.Run(gctx)) })
		if relay != nil {
			g.Go(func() error { return ignoreCancel(relay.Run(gctx)) })
		}
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
			defer cancel()
			log.InfoContext(shutdownCtx, "shutting down")
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// routes mounts the public API, the operator routes, the unlock webhook,
// health and metrics. A nil m skips request metrics.
func (a *app) routes(m *platformmetrics.Metrics) http.Handler {
	cfg := a.cfg
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	var handlerOpts []kychandler.Option
	if cfg.RateLimit.StatusRequests > 0 {
		handlerOpts = append(handlerOpts, kychandler.WithStatusLimiter(ratelimit.New(cfg.RateLimit.StatusRequests, cfg.RateLimit.Window)))
	}

	r := chi.NewRouter()
	r.Get("/healthz", a.handleHealth)
	r.Handle(cfg.Server.MetricsPath, promhttp.Handler())
	kychandler.New(a.kyc, a.logger, m, jwttoken.NewMiddlewareAdapter(jwtService), cfg.Auth.AdminToken, handlerOpts...).Register(r)
	dispatch.NewWebhook(a.kyc, cfg.Auth.WebhookToken, a.logger, a.security, a.timelockMetrics).Register(r)
	return r
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if code != http.StatusOK {
		status["status"] = "degraded"
	}
	httputil.WriteJSON(w, code, status)
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
