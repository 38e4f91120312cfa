package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"stopguard/internal/models"
)

// ErrSignalsConfigNotFound - для символа нет сохраненной конфигурации
var ErrSignalsConfigNotFound = errors.New("signals config not found")

const signalsConfigColumns = `
	symbol, ema_short_period, ema_mid_period, ema_long_period,
	stop_loss_atr_multiplier, take_profit_atr_multiplier,
	enable_adx_filter, adx_threshold,
	enable_buy_volume_filter, buy_volume_threshold,
	enable_sell_volume_filter, sell_volume_threshold,
	enable_exit_on_sell_signal, enable_exit_on_divergence, enable_exit_on_take_profit,
	updated_at`

// SignalsConfigRepository - работа с таблицей buy_sell_signals_config
type SignalsConfigRepository struct {
	db *sql.DB
}

// NewSignalsConfigRepository создает новый экземпляр репозитория
func NewSignalsConfigRepository(db *sql.DB) *SignalsConfigRepository {
	return &SignalsConfigRepository{db: db}
}

func scanSignalsConfig(row interface{ Scan(...interface{}) error }) (*models.BuySellSignalsConfigItem, error) {
	item := &models.BuySellSignalsConfigItem{}
	err := row.Scan(
		&item.Symbol,
		&item.EMAShortPeriod,
		&item.EMAMidPeriod,
		&item.EMALongPeriod,
		&item.StopLossATRMultiplier,
		&item.TakeProfitATRMultiplier,
		&item.EnableADXFilter,
		&item.ADXThreshold,
		&item.EnableBuyVolumeFilter,
		&item.BuyVolumeThreshold,
		&item.EnableSellVolumeFilter,
		&item.SellVolumeThreshold,
		&item.EnableExitOnSellSignal,
		&item.EnableExitOnDivergence,
		&item.EnableExitOnTakeProfit,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Get возвращает конфигурацию символа (базовой валюты)
func (r *SignalsConfigRepository) Get(ctx context.Context, symbol string) (*models.BuySellSignalsConfigItem, error) {
	query := `
		SELECT ` + signalsConfigColumns + `
		FROM buy_sell_signals_config
		WHERE symbol = $1`

	item, err := scanSignalsConfig(r.db.QueryRowContext(ctx, query, strings.ToUpper(symbol)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSignalsConfigNotFound
		}
		return nil, err
	}
	return item, nil
}

// GetAll возвращает конфигурации всех символов
func (r *SignalsConfigRepository) GetAll(ctx context.Context) ([]*models.BuySellSignalsConfigItem, error) {
	query := `
		SELECT ` + signalsConfigColumns + `
		FROM buy_sell_signals_config
		ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.BuySellSignalsConfigItem
	for rows.Next() {
		item, err := scanSignalsConfig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Upsert сохраняет конфигурацию символа
func (r *SignalsConfigRepository) Upsert(ctx context.Context, item *models.BuySellSignalsConfigItem) error {
	item.Normalize()

	query := `
		INSERT INTO buy_sell_signals_config (` + signalsConfigColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (symbol) DO UPDATE SET
			ema_short_period = $2, ema_mid_period = $3, ema_long_period = $4,
			stop_loss_atr_multiplier = $5, take_profit_atr_multiplier = $6,
			enable_adx_filter = $7, adx_threshold = $8,
			enable_buy_volume_filter = $9, buy_volume_threshold = $10,
			enable_sell_volume_filter = $11, sell_volume_threshold = $12,
			enable_exit_on_sell_signal = $13, enable_exit_on_divergence = $14,
			enable_exit_on_take_profit = $15, updated_at = $16`

	_, err := r.db.ExecContext(ctx, query,
		item.Symbol,
		item.EMAShortPeriod,
		item.EMAMidPeriod,
		item.EMALongPeriod,
		item.StopLossATRMultiplier,
		item.TakeProfitATRMultiplier,
		item.EnableADXFilter,
		item.ADXThreshold,
		item.EnableBuyVolumeFilter,
		item.BuyVolumeThreshold,
		item.EnableSellVolumeFilter,
		item.SellVolumeThreshold,
		item.EnableExitOnSellSignal,
		item.EnableExitOnDivergence,
		item.EnableExitOnTakeProfit,
		time.Now().UTC(),
	)
	return err
}
