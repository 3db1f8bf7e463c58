package main // Entry point package

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/lock"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// reservationd hosts the background half of the reservation lifecycle
// engine: the periodic expiration sweep and the event consumer.  The
// API layer lives elsewhere and calls the booking.Coordinator as a
// library.
func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reservationd").Logger()

	cfg := config.Load() // Load environment config
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	reservations := repository.NewReservationRepo(db, cfg.StorageTimeout)
	waitlist := repository.NewWaitlistRepo(db, cfg.StorageTimeout)
	tables := repository.NewTableRepo(db, cfg.StorageTimeout)

	// The Redis table lock is optional; without it the engine relies on
	// the database row locks alone.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable; cross-instance table locks disabled")
	}
	locks := lock.NewTableLocker(rdb, 5*time.Second)

	engine := booking.NewEngine(reservations, waitlist, tables, locks,
		cfg.HoldDuration, cfg.WaitlistDuration, log)

	var publisher booking.EventPublisher
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL, log)
		go queue.StartEventConsumer(cfg.RabbitURL, log)
	} else {
		log.Warn().Msg("RABBITMQ_URL unset; lifecycle events will not be published")
	}

	sweep := booking.NewSweep(engine, reservations, publisher, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Dur("sweep_period", cfg.SweepPeriod).
		Dur("hold_duration", cfg.HoldDuration).
		Str("env", cfg.Env).
		Msg("reservationd started")

	ticker := time.NewTicker(cfg.SweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			// A failed or skipped run only widens the effective hold
			// window; the next tick picks up whatever was left.
			if _, err := sweep.Run(ctx, time.Now().UTC()); err != nil {
				log.Error().Err(err).Msg("sweep run failed")
			}
		}
	}
}
