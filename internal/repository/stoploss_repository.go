package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"stopguard/internal/models"
)

// ErrStopLossNotFound - для символа нет ручного процента.
// Вызывающий подставляет процессный дефолт, это не сбой.
var ErrStopLossNotFound = errors.New("stop loss percent not found")

// StopLossRepository - работа с таблицей stop_loss_percent
type StopLossRepository struct {
	db *sql.DB
}

// NewStopLossRepository создает новый экземпляр репозитория
func NewStopLossRepository(db *sql.DB) *StopLossRepository {
	return &StopLossRepository{db: db}
}

// Get возвращает ручной процент стопа для символа (базовой валюты)
func (r *StopLossRepository) Get(ctx context.Context, symbol string) (*models.StopLossPercentItem, error) {
	query := `
		SELECT symbol, value, updated_at
		FROM stop_loss_percent
		WHERE symbol = $1`

	item := &models.StopLossPercentItem{}
	err := r.db.QueryRowContext(ctx, query, strings.ToUpper(symbol)).
		Scan(&item.Symbol, &item.Value, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStopLossNotFound
		}
		return nil, err
	}

	return item, nil
}

// GetAll возвращает все ручные проценты
func (r *StopLossRepository) GetAll(ctx context.Context) ([]*models.StopLossPercentItem, error) {
	query := `
		SELECT symbol, value, updated_at
		FROM stop_loss_percent
		ORDER BY symbol`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.StopLossPercentItem
	for rows.Next() {
		item := &models.StopLossPercentItem{}
		if err := rows.Scan(&item.Symbol, &item.Value, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Upsert сохраняет ручной процент для символа.
// Валидация диапазона выполняется конструктором модели.
func (r *StopLossRepository) Upsert(ctx context.Context, item *models.StopLossPercentItem) error {
	query := `
		INSERT INTO stop_loss_percent (symbol, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET value = $2, updated_at = $3`

	_, err := r.db.ExecContext(ctx, query, item.Symbol, item.Value, time.Now().UTC())
	return err
}

// Delete снимает ручной процент, возвращая символ на процессный дефолт
func (r *StopLossRepository) Delete(ctx context.Context, symbol string) error {
	query := `
		DELETE FROM stop_loss_percent
		WHERE symbol = $1`

	result, err := r.db.ExecContext(ctx, query, strings.ToUpper(symbol))
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStopLossNotFound
	}
	return nil
}
