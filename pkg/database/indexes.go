package database

import (
	"fmt"

	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Indexes gorm tags cannot express.
var jsonbIndexes = []string{
	// listFollowedPortfolios: followers @> '["identity"]'
	"CREATE INDEX IF NOT EXISTS idx_portfolios_followers_gin ON portfolios USING GIN (followers jsonb_path_ops);",
	// searchUsers: lower(username) LIKE 'prefix%' OR lower(display_name) LIKE 'prefix%'
	"DROP INDEX IF EXISTS idx_users_username_lower;",
	"CREATE INDEX IF NOT EXISTS idx_users_username_prefix ON users (lower(username) text_pattern_ops);",
	"CREATE INDEX IF NOT EXISTS idx_users_display_name_prefix ON users (lower(display_name) text_pattern_ops);",
}

const (
	createGlobalNameIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_portfolios_name_global ON portfolios (name);"
	dropGlobalNameIndex   = "DROP INDEX IF EXISTS idx_portfolios_name_global;"
)

// EnsureIndexes creates the jsonb indexes and applies the portfolio name policy.
// Switching the policy back to per-owner drops the global index.
func EnsureIndexes(db *gorm.DB, globalPortfolioNames bool) error {
	log := logger.GetLogger()

	for _, indexSQL := range jsonbIndexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			log.Warn("Failed to create index", zap.String("sql", indexSQL), zap.Error(err))
		}
	}

	stmt := dropGlobalNameIndex
	if globalPortfolioNames {
		stmt = createGlobalNameIndex
	}
	// The name policy is a correctness constraint, so failure here is fatal.
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to apply portfolio name policy: %w", err)
	}

	log.Info("Database indexes ensured", zap.Bool("global_portfolio_names", globalPortfolioNames))
	return nil
}
