// Command server runs the delivery bot: the Telegram dialogue, the back-office
// notifications, and the operator HTTP API.
//
// @title                      Delivery Bot Operator API
// @version                    1.0
// @description                Orders, customers and menu of the delivery bot.
// @BasePath                   /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in                         header
// @name                       X-API-Key
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-delivery-bot/internal/bot"
	"github.com/tbourn/go-delivery-bot/internal/cart"
	"github.com/tbourn/go-delivery-bot/internal/catalog"
	"github.com/tbourn/go-delivery-bot/internal/config"
	"github.com/tbourn/go-delivery-bot/internal/events"
	httpapi "github.com/tbourn/go-delivery-bot/internal/http"
	"github.com/tbourn/go-delivery-bot/internal/observability"
	"github.com/tbourn/go-delivery-bot/internal/repo"
	"github.com/tbourn/go-delivery-bot/internal/services"
	"github.com/tbourn/go-delivery-bot/internal/session"
	"github.com/tbourn/go-delivery-bot/internal/sysutil"
	"github.com/tbourn/go-delivery-bot/internal/telegram"
)

var version = "dev"

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:  cfg.DBDriver,
		Path:    cfg.DBPath,
		DSN:     cfg.DBDSN,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if _, err := catalog.Seed(ctx, db); err != nil {
		return err
	}
	cat, err := catalog.Load(ctx, db)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info().Int("products", cat.Len()).Msg("catalog loaded")

	labels, err := config.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return fmt.Errorf("labels: %w", err)
	}

	sessions, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("close publisher")
		}
	}()

	orders := services.NewOrderService(db, cat, cart.Pricing{
		FreeDeliveryThreshold: cfg.Pricing.FreeDeliveryThreshold,
		Fee:                   cfg.Pricing.DeliveryFee,
		Currency:              cfg.Pricing.Currency,
	})
	orders.Events = publisher
	orders.TimeOptions = cfg.DeliveryTimeOptions
	orders.MinutesCaption = func(m int) string { return fmt.Sprintf(labels.Texts.Minutes, m) }
	orders.Sessions = sessions
	orders.Texts = services.DecisionTexts{
		Confirmed:      labels.Texts.ThankYou,
		Cancelled:      labels.Texts.OrderCancelled,
		AdminConfirmed: labels.Texts.AdminOrderConfirmed,
		AdminCancelled: labels.Texts.AdminOrderCancelled,
	}
	users := services.NewUserService(db)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 2)
	botDone := make(chan struct{})

	if cfg.Bot.Enabled {
		tg, err := telegram.Dial(cfg.Bot)
		if err != nil {
			return err
		}
		orders.Notifier = tg
		orders.Customer = tg

		machine := bot.NewMachine(cfg, labels, bot.Deps{
			Catalog:  cat,
			Users:    users,
			Orders:   orders,
			Sessions: sessions,
		})
		dispatcher := bot.NewDispatcher(machine, tg)
		go func() {
			defer close(botDone)
			defer dispatcher.Close()
			if err := tg.Run(ctx, dispatcher); err != nil {
				errc <- fmt.Errorf("bot: %w", err)
			}
		}()
	} else {
		close(botDone)
		log.Warn().Msg("bot disabled; serving the operator API only")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Deps{Orders: orders, Users: users, Catalog: cat}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case runErr = <-errc:
	}
	cancel()

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	// Queued bot events finish before the database and publisher close.
	<-botDone
	return runErr
}

func openSessions(ctx context.Context, cfg config.Config) (session.Store, error) {
	if cfg.SessionBackend == "redis" {
		client, err := session.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(client, session.DefaultRetention)
	}
	mem := session.NewMemoryStore(session.DefaultRetention)
	go mem.RunSweeper(ctx, time.Hour)
	return mem, nil
}

func openPublisher(cfg config.Config) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.Nop{}, nil
	}
	p, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing order events")
	return p, nil
}
