package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vogiaan1904/ticketbottle-lightning/config"
	httpDelivery "github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/http"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/infra/database"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/infra/redis"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/lightning"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/reconcile"
	repo "github.com/vogiaan1904/ticketbottle-lightning/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/repository/sqldb"
	"github.com/vogiaan1904/ticketbottle-lightning/internal/service"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-lightning/pkg/grpc"
	pkgKafka "github.com/vogiaan1904/ticketbottle-lightning/pkg/kafka"
	pkgLog "github.com/vogiaan1904/ticketbottle-lightning/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
		Service:  "ticket-service",
	})

	// Store
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to database: %v", err)
	}
	if cfg.Database.Migrate {
		if err := sqldb.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			l.Fatalf(ctx, "Failed to migrate database: %v", err)
		}
	}
	store := sqldb.NewStore(db, cfg.Database.Driver, l)
	defer store.Close()

	// Lightning node
	lndCli, lndClose, err := pkgGrpc.NewLndClient(cfg.Lightning)
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize lnd client: %v", err)
	}
	defer lndClose()

	oracle := lightning.NewLndOracle(lndCli, lightning.LndConfig{
		CallTimeout:    cfg.Lightning.CallTimeout,
		ReconnectDelay: cfg.Lightning.ReconnectDelay,
	}, l)
	oracle = lightning.WithRetry(oracle, cfg.Lightning.RetryAttempts, cfg.Lightning.RetryDelay, l)

	decoder, err := lightning.NewDecoder(cfg.Lightning.Network)
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize invoice decoder: %v", err)
	}

	// Redis: settlement cache and payment status fan-out
	var updates repo.PaymentUpdateRepository
	if cfg.Redis.Enabled {
		redisCli, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		defer redis.Disconnect(redisCli)

		oracle = lightning.WithSettlementCache(oracle, repo.NewRedisSettlementCache(redisCli, cfg.Lightning.SettlementTTL, l), l)
		updates = repo.NewRedisPaymentUpdateRepository(redisCli, l)
	}

	// Kafka
	var prod producer.Producer = producer.NewNoopProducer()
	if cfg.Kafka.Enabled {
		kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     cfg.Kafka.ClientID,
			Version:      cfg.Kafka.Version,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kafkaSyncProd, l)
		defer prod.Close()
	}

	// Services
	tokens := service.NewTokenIssuer(cfg.JWT)
	tktSvc := service.NewTicketService(store, oracle, decoder, prod, updates, tokens, service.TicketServiceConfig{
		InvoiceExpiry:           cfg.Lightning.InvoiceExpiry,
		PendingTTL:              cfg.Ticket.PendingTTL,
		ReleaseCapacityOnExpiry: cfg.Ticket.ReleaseCapacityOnExpiry,
		StreamPollInterval:      cfg.Ticket.PaymentPollInterval,
	}, l)
	evtSvc := service.NewEventService(store, l)

	expiry := service.NewExpiryProcessor(store, tktSvc, l, cfg.Ticket)
	watcher := reconcile.NewSettlementWatcher(oracle, tktSvc, l)

	// HTTP server
	h := httpDelivery.NewHTTPHandler(tktSvc, evtSvc, l)
	h.RegisterStatus("expiry_processor", func() any { return expiry.GetStatus() })
	h.RegisterStatus("settlement_watcher", func() any { return watcher.GetStatus() })

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpDelivery.NewRouter(h, l),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(gctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := expiry.Start(gctx); err != nil {
			return fmt.Errorf("expiry processor: %w", err)
		}
		<-gctx.Done()
		return expiry.Stop()
	})

	if cfg.Lightning.SubscribeSettled {
		g.Go(func() error {
			if err := watcher.Start(gctx); err != nil {
				return fmt.Errorf("settlement watcher: %w", err)
			}
			<-gctx.Done()
			return watcher.Stop()
		})
	}

	if cfg.Kafka.Enabled {
		consGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.ConsumerGroupID,
			ClientID: cfg.Kafka.ClientID,
			Version:  cfg.Kafka.Version,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}

		cons := consumer.NewConsumer(consGr, tktSvc, l)
		g.Go(func() error {
			if err := cons.Start(gctx); err != nil {
				return fmt.Errorf("kafka consumer: %w", err)
			}
			<-gctx.Done()
			return cons.Close()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		l.Info(context.Background(), "Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Errorf(context.Background(), "Server stopped with error: %v", err)
	}

	l.Info(context.Background(), "Server exited")
}
