// Package main runs the wallet ledger API and the escrow expiry sweeper.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-petr/carmarket-wallet/cmd/httpserver"
	"github.com/go-petr/carmarket-wallet/internal/eventpub"
	"github.com/go-petr/carmarket-wallet/internal/ledgerservice"
	"github.com/go-petr/carmarket-wallet/internal/middleware"
	"github.com/go-petr/carmarket-wallet/internal/sweeper"
	"github.com/go-petr/carmarket-wallet/pkg/configpkg"
	"github.com/go-petr/carmarket-wallet/pkg/dbpkg"

	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}

	var pub ledgerservice.Publisher = eventpub.Log{}

	if brokers := config.KafkaBrokerList(); len(brokers) > 0 {
		kafkaPub := eventpub.NewKafka(brokers, config.KafkaTopic)
		defer kafkaPub.Close()

		pub = kafkaPub
	}

	server, err := httpserver.New(db, logger, config, pub)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}
	defer server.Store.Close()

	rdb := connectRedis(logger, config.RedisAddress)
	if rdb != nil {
		defer rdb.Close()
	}

	lease := sweeper.NewRedisLease(rdb, uuid.NewString(), config.SweepInterval)
	sw, err := sweeper.New(server.Escrow, lease, config.SweepInterval, config.SweepBatch)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create escrow sweeper")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithContext(ctx)

	srv := &http.Server{
		Addr:              config.ServerAddress,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", config.ServerAddress).Msg("WALLET API SERVER HAS STARTED")

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return sw.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return
	}

	logger.Info().Msg("server stopped")
}

// connectRedis returns nil when no address is configured or redis is unreachable;
// the sweeper then runs without a lease.
func connectRedis(logger zerolog.Logger, addr string) *redis.Client {
	if addr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, sweeping without lease")
		rdb.Close()

		return nil
	}

	return rdb
}
