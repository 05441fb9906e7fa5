package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/pflag"
	"github.com/vogiaan1904/clinicqueue-sync/config"
	"github.com/vogiaan1904/clinicqueue-sync/internal/api"
	grpcDelivery "github.com/vogiaan1904/clinicqueue-sync/internal/delivery/grpc"
	httpDelivery "github.com/vogiaan1904/clinicqueue-sync/internal/delivery/http"
	"github.com/vogiaan1904/clinicqueue-sync/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/clinicqueue-sync/internal/infra/redis"
	"github.com/vogiaan1904/clinicqueue-sync/internal/metrics"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
	"github.com/vogiaan1904/clinicqueue-sync/internal/push"
	"github.com/vogiaan1904/clinicqueue-sync/internal/queue"
	repo "github.com/vogiaan1904/clinicqueue-sync/internal/repository/redis"
	"github.com/vogiaan1904/clinicqueue-sync/internal/service"
	"github.com/vogiaan1904/clinicqueue-sync/internal/telemetry"
	pkgGrpc "github.com/vogiaan1904/clinicqueue-sync/pkg/grpc"
	pkgKafka "github.com/vogiaan1904/clinicqueue-sync/pkg/kafka"
	pkgLog "github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		departmentID string
		doctorID     string
		httpPort     int
	)
	flagSet := pflag.NewFlagSet("clinicqueue-dashboard", pflag.ContinueOnError)
	flagSet.StringVar(&departmentID, "department", "", "initial department id (overrides SELECTION_DEPARTMENT_ID)")
	flagSet.StringVar(&doctorID, "doctor", "", "initial doctor id (overrides SELECTION_DOCTOR_ID)")
	flagSet.IntVar(&httpPort, "http-port", 0, "dashboard API port (overrides SERVER_HTTP_PORT)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if flagSet.Changed("department") {
		cfg.Selection.DepartmentID = departmentID
	}
	if flagSet.Changed("doctor") {
		cfg.Selection.DoctorID = doctorID
	}
	if flagSet.Changed("http-port") {
		cfg.Server.HTTPPort = httpPort
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry, l)
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			l.Warnf(sctx, "tracing shutdown: %v", err)
		}
	}()

	m := metrics.New()

	// REST client; the jar keeps whatever session cookie the backend sets.
	jar, err := cookiejar.New(nil)
	if err != nil {
		l.Fatalf(ctx, "Failed to create cookie jar: %v", err)
	}
	apiCli, err := api.NewHTTPClient(cfg.API, jar, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to create API client: %v", err)
	}

	engine := queue.NewEngine(apiCli, l)
	engine.OnChange(func(_ context.Context, st models.DoctorQueueState) { m.ObserveQueue(st) })

	if cfg.Redis.Enabled {
		redisCli, err := redis.Connect(ctx, cfg.Redis, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		defer redis.Disconnect(context.Background(), redisCli, l)

		stateRepo := repo.NewRedisStateRepository(redisCli, l)
		engine.OnChange(stateRepo.PublishState)
	}

	var prod producer.Producer
	if cfg.Kafka.Enabled {
		var kafkaSyncProd sarama.SyncProducer
		kafkaSyncProd, err = pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
			ClientID:     cfg.Telemetry.ServiceName,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kafkaSyncProd, l)
		defer prod.Close()
	}

	// The push stream is long-lived, so its client has no overall timeout.
	streamCli := &http.Client{Jar: jar, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	pushMgr := push.NewManager(push.NewSSETransport(cfg.Push.StreamURL, streamCli, cfg.API.SessionCookie), cfg.Push, l)
	pushMgr.Start(ctx)
	defer pushMgr.Close()

	// Services
	selSvc := service.NewSelectionService(engine, apiCli, pushMgr, l)
	cmdSvc := service.NewCommandService(engine, apiCli, prod, m, l, cfg.API)

	// gRPC health server mirrors the push channel.
	gRpcSrv, healthSrv := pkgGrpc.NewServer(l)
	healthMirror := grpcDelivery.NewHealthMirror(healthSrv, l)

	handlers := service.NewPushHandlers(engine, selSvc, m, l)
	handlers.OnStateChange = healthMirror.Observe(handlers.OnStateChange)
	pushMgr.Handle(handlers)

	var poller service.SnapshotPoller
	if cfg.Selection.RefreshInterval > 0 {
		poller = service.NewSnapshotPoller(selSvc, l, cfg.Selection)
	}

	// http server
	h := httpDelivery.NewHTTPHandler(cmdSvc, selSvc, pushMgr, poller, l)
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      otelhttp.NewHandler(httpDelivery.NewRouter(h, l, m.Handler()), "clinicqueue-dashboard"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}

	if err := selSvc.LoadDirectory(ctx); err != nil {
		l.Warnf(ctx, "Directory not loaded, selectors will be empty: %v", err)
	}
	if err := selSvc.Select(ctx, models.Selection{DepartmentID: cfg.Selection.DepartmentID, DoctorID: cfg.Selection.DoctorID}); err != nil {
		l.Warnf(ctx, "Initial snapshot failed: %v", err)
	}

	if poller != nil {
		if err := poller.Start(ctx); err != nil {
			l.Fatalf(ctx, "Failed to start snapshot poller: %v", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(gctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		return gRpcSrv.Serve(lnr)
	})
	g.Go(func() error {
		l.Infof(gctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info(context.Background(), "Server shutting down...")

		if poller != nil {
			_ = poller.Stop()
		}
		pushMgr.Close()

		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		err := httpSrv.Shutdown(sctx)
		gRpcSrv.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		l.Errorf(context.Background(), "Server stopped with error: %v", err)
	}
	l.Info(context.Background(), "Server exited")
}
