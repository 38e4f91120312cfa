package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stopguard/internal/models"
)

// FlagRepository - работа с таблицей global_flag.
//
// Отсутствие записи означает "включено": защитные задачи работают,
// пока их явно не выключили. Это семантика чтения, а не дефолт
// строки в БД.
type FlagRepository struct {
	db *sql.DB
}

// NewFlagRepository создает новый экземпляр репозитория
func NewFlagRepository(db *sql.DB) *FlagRepository {
	return &FlagRepository{db: db}
}

// Get возвращает флаг по имени; при отсутствии записи - включенный флаг
func (r *FlagRepository) Get(ctx context.Context, name string) (*models.GlobalFlag, error) {
	if !models.IsKnownFlag(name) {
		return nil, fmt.Errorf("unknown flag: %s", name)
	}

	query := `
		SELECT name, value, updated_at
		FROM global_flag
		WHERE name = $1`

	flag := &models.GlobalFlag{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&flag.Name, &flag.Value, &flag.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.GlobalFlag{Name: name, Value: true}, nil
		}
		return nil, err
	}

	return flag, nil
}

// GetAll возвращает все известные флаги, дополняя отсутствующие дефолтом
func (r *FlagRepository) GetAll(ctx context.Context) ([]*models.GlobalFlag, error) {
	query := `
		SELECT name, value, updated_at
		FROM global_flag`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stored := make(map[string]*models.GlobalFlag)
	for rows.Next() {
		flag := &models.GlobalFlag{}
		if err := rows.Scan(&flag.Name, &flag.Value, &flag.UpdatedAt); err != nil {
			return nil, err
		}
		stored[flag.Name] = flag
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*models.GlobalFlag, 0, len(models.KnownFlags))
	for _, name := range models.KnownFlags {
		if flag, ok := stored[name]; ok {
			result = append(result, flag)
		} else {
			result = append(result, &models.GlobalFlag{Name: name, Value: true})
		}
	}
	return result, nil
}

// Set записывает значение флага (upsert)
func (r *FlagRepository) Set(ctx context.Context, name string, value bool) error {
	if !models.IsKnownFlag(name) {
		return fmt.Errorf("unknown flag: %s", name)
	}

	query := `
		INSERT INTO global_flag (name, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET value = $2, updated_at = $3`

	_, err := r.db.ExecContext(ctx, query, name, value, time.Now().UTC())
	return err
}
