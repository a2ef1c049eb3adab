// README: Entry point; loads config, wires services and serves the HTTP API until signalled.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"isuride/internal/config"
	"isuride/internal/events"
	httptransport "isuride/internal/http"
	"isuride/internal/http/handlers"
	"isuride/internal/infra"
	"isuride/internal/modules/chair"
	"isuride/internal/modules/coupon"
	"isuride/internal/modules/dispatch"
	"isuride/internal/modules/fare"
	"isuride/internal/modules/location"
	"isuride/internal/modules/owner"
	"isuride/internal/modules/payment"
	"isuride/internal/modules/ride"
	"isuride/internal/modules/session"
	"isuride/internal/modules/stats"
	"isuride/internal/modules/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("db init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	defer func() { _ = publisher.Close() }()

	txRunner := infra.NewTxRunner(dbPool)
	fares := fare.NewCalculator(cfg.Fare)

	couponSvc := coupon.NewService(coupon.NewStore(dbPool))
	statsSvc := stats.NewService(stats.NewStore(dbPool))

	endpoint := payment.NewEndpoint(cfg.Payment.URL)
	gateway := payment.NewGateway(endpoint, cfg.Payment, logger)

	rideStore := ride.NewStore(dbPool)
	rideSvc := ride.NewService(txRunner, rideStore, ride.Deps{
		Coupons:  couponSvc,
		Fares:    fares,
		Payments: gateway,
		Chairs:   statsSvc,
		Events:   publisher,
		Log:      logger,
	})

	locationCache := location.NewCache(redisClient)
	locationSvc := location.NewService(txRunner, location.NewStore(dbPool), locationCache, rideSvc, logger)

	dispatchSvc := dispatch.NewService(txRunner, dispatch.NewStore(dbPool), rideStore, locationSvc, statsSvc, cfg.Dispatch, logger)

	userSvc := user.NewService(txRunner, user.NewStore(dbPool), couponSvc)
	ownerSvc := owner.NewService(owner.NewStore(dbPool), fares)
	chairSvc := chair.NewService(chair.NewStore(dbPool))
	sessionSvc := session.NewService(session.NewStore(dbPool), session.NewCache(redisClient, cfg.Redis.SessionTTL), logger)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Sessions: sessionSvc,
		Users:    userSvc,
		Owners:   ownerSvc,
		Chairs:   chairSvc,
		Rides:    rideSvc,
		Statuses: rideSvc,
		Nearby:   dispatchSvc,
		Dispatch: dispatchSvc,
		Location: locationSvc,
		Payment:  endpoint,
		Flushers: []handlers.Flusher{sessionSvc, locationCache},
		Log:      logger,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, router, logger)
	if err := server.Run(ctx); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
