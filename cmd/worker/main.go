package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"qrattend/internal/config"
	"qrattend/internal/logging"
	"qrattend/internal/queue"
	"qrattend/internal/session"
	"qrattend/internal/store"
)

const (
	sweepInterval = time.Minute
	counterTTL    = 24 * time.Hour
)

// Worker sweeps expired sessions inactive and folds redemption events into
// per-session live counters for the lecturer dashboard.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:events")
	}

	sessions := session.NewRepository(db.Client)

	// Expiry sweep on a fixed cadence. A session past its TTL goes
	// inactive exactly as if the lecturer had closed it.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				swept, err := sessions.DeactivateExpired(ctx, now)
				if err != nil {
					logger.Warn("expiry sweep failed", zap.Error(err))
					continue
				}
				if swept > 0 {
					logger.Info("sessions expired", zap.Int64("count", swept))
				}
			}
		}
	}()

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started, waiting for messages")
	for msg := range messages {
		if msg.Type != queue.TypeRedeemed {
			continue
		}

		sessionID := string(msg.Body)
		key := "qrattend:session:" + sessionID + ":present"
		count, err := redisClient.Client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("counter update failed", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		redisClient.Client.Expire(ctx, key, counterTTL)
		logger.Info("redemption counted",
			zap.String("session_id", sessionID),
			zap.Int64("present", count))
	}

	logger.Info("worker stopped")
}
