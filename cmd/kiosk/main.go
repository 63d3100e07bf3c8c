package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"qrattend/internal/camera"
	"qrattend/internal/config"
	"qrattend/internal/logging"
	"qrattend/internal/redeem"
	"qrattend/internal/scanner"
)

const frameInterval = 100 * time.Millisecond

// Kiosk is a headless scanning station: an external grabber drops frames
// into FRAMES_DIR, the camera machine owns the consumer lock, and detected
// QR payloads are redeemed against the API with the kiosk's student token.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	if cfg.KioskToken == "" {
		logger.Fatal("KIOSK_TOKEN is required (a student access token)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	machine := camera.NewMachine(camera.NewDirectorySource(cfg.FramesDir), camera.Config{
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	// Leaving main always releases the stream, whatever path got us there.
	defer machine.Close()

	if err := startCamera(ctx, machine, logger); err != nil {
		logger.Fatal("camera unavailable", zap.Error(err))
	}

	client := NewRedeemClient(cfg.APIBaseURL, cfg.KioskToken)
	detections := make(chan string, 1)
	loop := scanner.NewLoop(scanner.NewQRDetector(), cfg.ScanCooldown, func(raw string) {
		select {
		case detections <- raw:
		default: // previous detection still being redeemed
		}
	}, logger)

	logger.Info("kiosk scanning", zap.String("frames", cfg.FramesDir), zap.String("api", cfg.APIBaseURL))

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("kiosk stopped")
			return

		case now := <-ticker.C:
			loop.Tick(now, machine.Frame())

		case raw := <-detections:
			if redeemed := redeemScan(ctx, client, raw, logger); redeemed {
				// Successful redemption ends this scan session.
				machine.Close()
				logger.Info("kiosk done")
				return
			}
		}
	}
}

// startCamera runs initial acquisition plus the bounded manual-retry
// policy for transient failures.
func startCamera(ctx context.Context, m *camera.Machine, logger *zap.Logger) error {
	err := m.Start(ctx)
	for err != nil {
		var aerr *camera.AcquireError
		if !errors.As(err, &aerr) {
			return err
		}
		logger.Warn("camera acquisition failed", zap.String("hint", aerr.Class.Hint()))

		// Only contention is worth retrying without operator action.
		if aerr.Class != camera.ClassDeviceBusy {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
		err = m.Retry(ctx)
		if errors.Is(err, camera.ErrRetriesExhausted) {
			return err
		}
	}
	return nil
}

// redeemScan runs the two-phase redemption for one detected payload and
// reports whether a record was committed.
func redeemScan(ctx context.Context, client *RedeemClient, raw string, logger *zap.Logger) bool {
	res, err := client.Scan(ctx, raw)
	if err != nil {
		logger.Warn("scan validate failed, will rescan", zap.Error(err))
		return false
	}
	if res.Outcome != string(redeem.OutcomeOK) {
		logger.Info("scan rejected",
			zap.String("outcome", res.Outcome),
			zap.String("message", res.Message),
			zap.Strings("missing", res.MissingFields))
		return false
	}

	// The kiosk operator is the acknowledging party; confirm immediately.
	res, err = client.Confirm(ctx, raw)
	if err != nil {
		logger.Warn("confirm failed, will rescan", zap.Error(err))
		return false
	}
	if res.Outcome != string(redeem.OutcomeOK) {
		logger.Info("confirm rejected", zap.String("outcome", res.Outcome), zap.String("message", res.Message))
		return false
	}

	logger.Info("attendance recorded", zap.ByteString("record", res.Record))
	return true
}
