// Package cron runs the background side of the transaction core: the
// asynq worker that delivers notifications and the scheduler that feeds
// it the periodic sweeps keeping payments, bookings and codes honest.
package cron

import (
	"context"
	"time"

	"skybook/config"
	"skybook/services/booking"
	"skybook/services/codes"
	"skybook/services/notification"
	"skybook/services/payment"
	"skybook/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Sweep task types.
const (
	TypePaymentExpire = "sweep:payment_expire"
	TypeBookingPurge  = "sweep:booking_purge"
	TypeCodeExpire    = "sweep:code_expire"
)

// Cancelled never-paid bookings are purged after this long.
const bookingRetention = 30 * 24 * time.Hour

// InitWorker starts the asynq worker and scheduler in the background.
func InitWorker(paySvc *payment.Service, bookSvc *booking.Service, codeEngine *codes.Engine) {
	logger := utils.GetLogger()

	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TypeBookingConfirmed, notification.HandleTask(logger))
	mux.HandleFunc(notification.TypePaymentFailed, notification.HandleTask(logger))
	mux.HandleFunc(TypePaymentExpire, handlePaymentExpire(paySvc, logger))
	mux.HandleFunc(TypeBookingPurge, handleBookingPurge(bookSvc, logger))
	mux.HandleFunc(TypeCodeExpire, handleCodeExpire(codeEngine, logger))

	go func() {
		logger.Info("starting async worker")
		const maxAttempts = 5
		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("async worker failed to start",
					zap.Int("attempt", attempts),
					zap.Int("max", maxAttempts),
					zap.Error(err))
				if attempts == maxAttempts {
					logger.Fatal("async worker exhausted start attempts")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()

	initScheduler(redisOpts, logger)
}

// initScheduler enqueues the periodic sweeps. The expiry sweep runs every
// minute so a lapsed payment window is noticed within a minute of it
// closing; the purge and code sweeps are hourly housekeeping.
func initScheduler(redisOpts asynq.RedisClientOpt, logger *zap.Logger) {
	scheduler := asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{})

	entries := map[string]*asynq.Task{
		"* * * * *": asynq.NewTask(TypePaymentExpire, nil),
		"7 * * * *": asynq.NewTask(TypeBookingPurge, nil),
		"3 * * * *": asynq.NewTask(TypeCodeExpire, nil),
	}
	for spec, task := range entries {
		if _, err := scheduler.Register(spec, task); err != nil {
			logger.Fatal("failed to register scheduled sweep",
				zap.String("task", task.Type()),
				zap.Error(err))
		}
	}

	go func() {
		logger.Info("starting sweep scheduler")
		if err := scheduler.Run(); err != nil {
			logger.Fatal("sweep scheduler failed", zap.Error(err))
		}
	}()
}

func handlePaymentExpire(svc *payment.Service, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := svc.ExpireSweep(ctx, time.Now())
		if err != nil {
			logger.Error("payment expiry sweep failed", zap.Error(err))
			return err
		}
		if n > 0 {
			logger.Info("expired lapsed payments", zap.Int("count", n))
		}
		return nil
	}
}

func handleBookingPurge(svc *booking.Service, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		cancelled, deleted, err := svc.PurgeStale(ctx, time.Now(), bookingRetention)
		if err != nil {
			logger.Error("booking purge sweep failed", zap.Error(err))
			return err
		}
		if cancelled > 0 || deleted > 0 {
			logger.Info("purged stale bookings",
				zap.Int("cancelled", cancelled),
				zap.Int("deleted", deleted))
		}
		return nil
	}
}

func handleCodeExpire(engine *codes.Engine, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := engine.Repo.ExpireAll(ctx)
		if err != nil {
			logger.Error("code expiry sweep failed", zap.Error(err))
			return err
		}
		if n > 0 {
			logger.Info("expired payment codes", zap.Int64("count", n))
		}
		return nil
	}
}
