// The promoter runs the learning promotion sweep on a schedule: pending
// patterns that cleared the auto-approval thresholds are folded into the
// live pattern table.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"github.com/smritistudio/chat-engine/cmd/mainconfig"
	appconfig "github.com/smritistudio/chat-engine/internal/config"
	"github.com/smritistudio/chat-engine/internal/patterns"
	"github.com/smritistudio/chat-engine/internal/store"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting promotion scheduler",
		"env", cfg.Env,
		"interval", cfg.PromotionInterval.String(),
	)

	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	configStore := store.NewConfigStore(dynamodb.NewFromConfig(awsCfg), cfg.ConfigTable, logger)
	policy := patterns.PromotionPolicy{
		MinOccurrences: cfg.AutoApproveThreshold,
		MinConfidence:  cfg.AutoApproveConfidence,
	}

	scheduler := gocron.NewScheduler(time.UTC)
	_, err = scheduler.Every(cfg.PromotionInterval).Do(func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		promoted, err := promote(runCtx, configStore, policy)
		if err != nil {
			logger.Error("promotion sweep failed", "error", err)
			return
		}
		if promoted > 0 {
			logger.Info("promotion sweep complete", "promoted", promoted)
		}
	})
	if err != nil {
		logger.Error("failed to schedule promotion sweep", "error", err)
		os.Exit(1)
	}
	scheduler.StartAsync()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("stopping promotion scheduler")
	scheduler.Stop()
}

// promote runs one sweep with the usual optimistic-write retry.
func promote(ctx context.Context, cfg *store.ConfigStore, policy patterns.PromotionPolicy) (int, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		table, err := cfg.GetPatterns(ctx)
		if err != nil {
			return 0, err
		}

		promoted := table.Promote(policy, time.Now().UTC())
		if promoted == 0 {
			return 0, nil
		}

		if err := cfg.PutPatterns(ctx, table); err != nil {
			lastErr = err
			if errors.Is(err, store.ErrConfigConflict) {
				continue
			}
			return 0, err
		}
		return promoted, nil
	}
	return 0, lastErr
}
