package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"stopguard/internal/models"
)

// ============================================================
// StopLossRepository Tests
// ============================================================

func TestStopLossRepositoryGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"symbol", "value", "updated_at"}).
		AddRow("ETH", 3.25, time.Now())
	mock.ExpectQuery(`SELECT .+ FROM stop_loss_percent WHERE symbol = \$1`).
		WithArgs("ETH").
		WillReturnRows(rows)

	repo := NewStopLossRepository(db)
	item, err := repo.Get(context.Background(), "eth")
	if err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}
	if item.Symbol != "ETH" || item.Value != 3.25 {
		t.Errorf("item = %+v", item)
	}
}

func TestStopLossRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM stop_loss_percent`).
		WithArgs("XRP").
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "value", "updated_at"}))

	repo := NewStopLossRepository(db)
	_, err = repo.Get(context.Background(), "XRP")
	if !errors.Is(err, ErrStopLossNotFound) {
		t.Errorf("ожидалась ErrStopLossNotFound, получено %v", err)
	}
}

func TestStopLossRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	item, err := models.NewStopLossPercentItem("eth", 2.5)
	if err != nil {
		t.Fatalf("NewStopLossPercentItem ошибка: %v", err)
	}

	mock.ExpectExec(`INSERT INTO stop_loss_percent`).
		WithArgs("ETH", 2.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewStopLossRepository(db)
	if err := repo.Upsert(context.Background(), item); err != nil {
		t.Fatalf("Upsert ошибка: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("незакрытые ожидания: %v", err)
	}
}

func TestStopLossRepositoryDelete(t *testing.T) {
	tests := []struct {
		name      string
		affected  int64
		expectErr error
	}{
		{"удалено", 1, nil},
		{"нечего удалять", 0, ErrStopLossNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`DELETE FROM stop_loss_percent`).
				WithArgs("ETH").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			repo := NewStopLossRepository(db)
			err = repo.Delete(context.Background(), "eth")
			if !errors.Is(err, tt.expectErr) {
				t.Errorf("err = %v, ожидалось %v", err, tt.expectErr)
			}
		})
	}
}
