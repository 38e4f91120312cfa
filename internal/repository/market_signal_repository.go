package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"stopguard/internal/models"
)

// MarketSignalRepository - работа с таблицей market_signal
type MarketSignalRepository struct {
	db *sql.DB
}

// NewMarketSignalRepository создает новый экземпляр репозитория
func NewMarketSignalRepository(db *sql.DB) *MarketSignalRepository {
	return &MarketSignalRepository{db: db}
}

// Save сохраняет сигнал и проставляет присвоенный id
func (r *MarketSignalRepository) Save(ctx context.Context, signal *models.MarketSignal) error {
	query := `
		INSERT INTO market_signal
			(timestamp, symbol, timeframe, signal_type, rsi_state, atr, closing_price, ema_long_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		signal.Timestamp,
		signal.Symbol,
		signal.Timeframe,
		signal.SignalType,
		signal.RSIState,
		signal.ATR,
		signal.ClosingPrice,
		signal.EMALongPrice,
	).Scan(&signal.ID)
}

// LastTrendSignal возвращает последний трендовый (buy/sell) сигнал
// символа на таймфрейме, nil при отсутствии
func (r *MarketSignalRepository) LastTrendSignal(ctx context.Context, symbol, timeframe string) (*models.MarketSignal, error) {
	query := `
		SELECT id, timestamp, symbol, timeframe, signal_type, rsi_state, atr, closing_price, ema_long_price
		FROM market_signal
		WHERE symbol = $1 AND timeframe = $2 AND signal_type IN ($3, $4)
		ORDER BY timestamp DESC
		LIMIT 1`

	signal := &models.MarketSignal{}
	err := r.db.QueryRowContext(ctx, query, symbol, timeframe,
		models.SignalTypeBuy, models.SignalTypeSell).Scan(
		&signal.ID,
		&signal.Timestamp,
		&signal.Symbol,
		&signal.Timeframe,
		&signal.SignalType,
		&signal.RSIState,
		&signal.ATR,
		&signal.ClosingPrice,
		&signal.EMALongPrice,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return signal, nil
}

// List возвращает историю сигналов символа, новые первыми.
// Пустой символ - по всем символам.
func (r *MarketSignalRepository) List(ctx context.Context, symbol string, limit int) ([]*models.MarketSignal, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, timestamp, symbol, timeframe, signal_type, rsi_state, atr, closing_price, ema_long_price
		FROM market_signal
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*models.MarketSignal
	for rows.Next() {
		signal := &models.MarketSignal{}
		if err := rows.Scan(
			&signal.ID,
			&signal.Timestamp,
			&signal.Symbol,
			&signal.Timeframe,
			&signal.SignalType,
			&signal.RSIState,
			&signal.ATR,
			&signal.ClosingPrice,
			&signal.EMALongPrice,
		); err != nil {
			return nil, err
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

// DeleteOlderThan удаляет сигналы старше порога (retention-политика)
func (r *MarketSignalRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM market_signal
		WHERE timestamp < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
