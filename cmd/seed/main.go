// The seed command loads the stock response templates, service packages and
// pattern table into the config table. Run once against a fresh environment;
// responses and packages are overwritten, learned patterns are left alone.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/smritistudio/chat-engine/cmd/mainconfig"
	appconfig "github.com/smritistudio/chat-engine/internal/config"
	"github.com/smritistudio/chat-engine/internal/patterns"
	"github.com/smritistudio/chat-engine/internal/responder"
	"github.com/smritistudio/chat-engine/internal/store"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewText(cfg.LogLevel)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	configStore := store.NewConfigStore(dynamodb.NewFromConfig(awsCfg), cfg.ConfigTable, logger)

	facts := responder.Facts{
		StudioName: cfg.StudioName,
		Phone:      cfg.StudioPhone,
		Email:      cfg.StudioEmail,
	}
	if err := configStore.Seed(ctx, responder.DefaultTable(), facts, defaultPackages()); err != nil {
		logger.Error("failed to seed responses and packages", "error", err)
		os.Exit(1)
	}
	logger.Info("seeded responses and packages", "table", cfg.ConfigTable)

	// Patterns are seeded only when absent so learned entries survive reruns.
	_, err = configStore.GetPatterns(ctx)
	switch {
	case errors.Is(err, store.ErrConfigNotFound):
		if err := configStore.PutPatterns(ctx, patterns.DefaultTable()); err != nil {
			logger.Error("failed to seed pattern table", "error", err)
			os.Exit(1)
		}
		logger.Info("seeded pattern table")
	case err != nil:
		logger.Error("failed to check pattern table", "error", err)
		os.Exit(1)
	default:
		logger.Info("pattern table already present, skipping")
	}
}

func defaultPackages() []responder.Package {
	return []responder.Package{
		{
			ID:           "wedding-premium",
			Name:         "Wedding Premium",
			Price:        125000,
			Emoji:        "💍",
			Features:     []string{"2 photographers", "Full-day coverage", "Cinematic highlight film", "500+ edited photos", "Premium album"},
			Popular:      true,
			DisplayOrder: 1,
			Active:       true,
		},
		{
			ID:           "wedding-classic",
			Name:         "Wedding Classic",
			Price:        75000,
			Emoji:        "📸",
			Features:     []string{"1 photographer", "8-hour coverage", "300+ edited photos", "Standard album"},
			DisplayOrder: 2,
			Active:       true,
		},
		{
			ID:           "pre-wedding",
			Name:         "Pre-Wedding Shoot",
			Price:        35000,
			Emoji:        "🌅",
			Features:     []string{"Half-day shoot", "2 locations", "100+ edited photos"},
			DisplayOrder: 3,
			Active:       true,
		},
		{
			ID:           "event",
			Name:         "Event Coverage",
			Price:        25000,
			Emoji:        "🎉",
			Features:     []string{"4-hour coverage", "150+ edited photos"},
			DisplayOrder: 4,
			Active:       true,
		},
	}
}
