package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// SaveRunSummary inserts one run summary row. Decimal fields bind as
// strings through their driver.Valuer, landing in numeric columns
// without float rounding.
func (p *PostgresStorage) SaveRunSummary(ctx context.Context, rec *RunRecord) error {
	query := `
		INSERT INTO run_summaries (
			run_id, mode, strategy, primary_asset, tape_dir,
			started_at, finished_at,
			starting_cash, final_equity, realized_pnl, unrealized_pnl,
			total_fees, net_profit, fee_rate_bps, mark_method,
			pricing_source, events, orders, fills,
			run_quality, warnings_total, exit_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.RunID,
		rec.Mode,
		rec.Strategy,
		rec.PrimaryAsset,
		rec.TapeDir,
		rec.StartedAt,
		rec.FinishedAt,
		rec.StartingCash,
		rec.FinalEquity,
		rec.RealizedPnL,
		rec.UnrealizedPnL,
		rec.TotalFees,
		rec.NetProfit,
		rec.FeeRateBps,
		rec.MarkMethod,
		rec.PricingSource,
		rec.Events,
		rec.Orders,
		rec.Fills,
		rec.RunQuality,
		rec.WarningsTotal,
		rec.ExitReason,
	)

	if err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}

	p.logger.Debug("run-summary-stored",
		zap.String("run-id", rec.RunID),
		zap.String("mode", rec.Mode),
		zap.String("net-profit", rec.NetProfit.String()))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
