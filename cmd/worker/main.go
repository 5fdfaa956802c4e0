package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agilefinance/boletoflow/internal/alerting"
	"github.com/agilefinance/boletoflow/internal/boleto"
	"github.com/agilefinance/boletoflow/internal/config"
	"github.com/agilefinance/boletoflow/internal/db"
	"github.com/agilefinance/boletoflow/internal/health"
	"github.com/agilefinance/boletoflow/internal/logging"
	"github.com/agilefinance/boletoflow/internal/message"
	"github.com/agilefinance/boletoflow/internal/metrics"
	"github.com/agilefinance/boletoflow/internal/provider"
	"github.com/agilefinance/boletoflow/internal/task"
	"github.com/agilefinance/boletoflow/internal/tracing"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("boletoflow-worker")

	shutdown, err := tracing.InitTracing(ctx, "boletoflow-worker")
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdown()

	pool, err := db.Connect(ctx, cfg.DSN(), 10)
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	// HTTP health/metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(pool))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: cfg.Worker.HTTPPort, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("worker HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("worker HTTP server failed")
		}
	}()

	issuer := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.APISecret, cfg.Provider.Timeout)

	store := task.NewPostgresStore(pool)
	backoff := task.Backoff{
		Schedule:  cfg.Worker.BackoffSchedule,
		JitterPct: cfg.Worker.JitterPercent,
	}
	dispatcher := task.NewDispatcher(store, backoff,
		boleto.NewProcessor(boleto.NewPostgresRepository(pool), issuer),
		message.NewProcessor(message.NewPostgresRepository(pool), issuer),
	)
	scheduler := task.NewScheduler(dispatcher, cfg.Worker.Interval, cfg.Worker.BatchSize)

	publishers := []task.AlertPublisher{alerting.NewLogPublisher()}
	if cfg.Monitor.PublishAlertsToNSQ {
		nsqPublisher, perr := alerting.NewNSQPublisher(cfg.Monitor.NSQDTCPAddr, cfg.Monitor.AlertsTopic)
		if perr != nil {
			logger.Plain().WithError(perr).Fatal("nsq alert publisher creation failed")
		}
		defer nsqPublisher.Stop()
		publishers = append(publishers, nsqPublisher)
	}

	monitor := task.NewMonitor(store, cfg.Monitor.Interval, task.Thresholds{
		PendingTasks: int64(cfg.Monitor.PendingThreshold),
		FailedTasks:  int64(cfg.Monitor.FailedThreshold),
		FailureRate:  cfg.Monitor.FailureRateLimit,
	}, publishers...)

	scheduler.Start(ctx)
	monitor.Start(ctx)

	logger.Plain().Info("worker service started")

	// Graceful stop: drain the in-flight batch, then shut everything down
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down worker service")
	scheduler.Stop()
	monitor.Stop()
	_ = httpSrv.Shutdown(context.Background())
	logger.Plain().Info("worker service stopped")
}
