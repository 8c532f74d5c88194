package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"submeter/backend/services/metering-service/internal/meter"
)

// SettlementRepository persists monthly settlement records.
type SettlementRepository struct {
	db *sql.DB
}

// NewSettlementRepository returns repository.
func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Insert stores one settlement record for meterID.
func (r *SettlementRepository) Insert(ctx context.Context, meterID string, rec meter.Record) error {
	const query = `
		INSERT INTO meter_settlements (id, meter_id, period, consumption_kwh, balance, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		meterID,
		rec.Period,
		rec.Consumption,
		rec.Balance,
		rec.SettledAt,
	)
	return err
}

// ListByMeter returns the latest settlements of a meter, most recent first.
func (r *SettlementRepository) ListByMeter(ctx context.Context, meterID string, limit int) ([]meter.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, period, consumption_kwh, balance, settled_at
		FROM meter_settlements
		WHERE meter_id = $1
		ORDER BY settled_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, meterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []meter.Record
	for rows.Next() {
		var rec meter.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.Period,
			&rec.Consumption,
			&rec.Balance,
			&rec.SettledAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Journal adapts the repository to coordinator.SettlementJournal. Writes are
// bounded by timeout and failures are only logged.
type Journal struct {
	repo    *SettlementRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewJournal builds a journal.
func NewJournal(repo *SettlementRepository, timeout time.Duration, logger *zap.Logger) *Journal {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Journal{repo: repo, timeout: timeout, logger: logger}
}

// Settled implements coordinator.SettlementJournal.
func (j *Journal) Settled(meterID string, rec meter.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.repo.Insert(ctx, meterID, rec); err != nil {
		j.logger.Warn("failed to journal settlement",
			zap.String("meter_id", meterID),
			zap.String("period", rec.Period),
			zap.Error(err),
		)
	}
}

// History implements the history lookup used by the HTTP layer.
func (j *Journal) History(ctx context.Context, meterID string, limit int) ([]meter.Record, error) {
	return j.repo.ListByMeter(ctx, meterID, limit)
}
