package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"stopguard/internal/models"
)

// ============================================================
// FlagRepository Tests
// ============================================================

func TestFlagRepositoryGet(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		flag        string
		mockSetup   func(mock sqlmock.Sqlmock)
		wantValue   bool
		expectError bool
	}{
		{
			name: "существующий выключенный флаг",
			flag: models.FlagTrailingStopLoss,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"name", "value", "updated_at"}).
					AddRow(models.FlagTrailingStopLoss, false, now)
				mock.ExpectQuery(`SELECT .+ FROM global_flag WHERE name = \$1`).
					WithArgs(models.FlagTrailingStopLoss).
					WillReturnRows(rows)
			},
			wantValue: false,
		},
		{
			name: "отсутствующая запись - флаг включен",
			flag: models.FlagLimitSellGuard,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM global_flag WHERE name = \$1`).
					WithArgs(models.FlagLimitSellGuard).
					WillReturnRows(sqlmock.NewRows([]string{"name", "value", "updated_at"}))
			},
			wantValue: true,
		},
		{
			name:        "неизвестный флаг",
			flag:        "NOT_A_FLAG",
			mockSetup:   func(mock sqlmock.Sqlmock) {},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()
			tt.mockSetup(mock)

			repo := NewFlagRepository(db)
			flag, err := repo.Get(context.Background(), tt.flag)

			if tt.expectError {
				if err == nil {
					t.Error("ожидалась ошибка")
				}
				return
			}
			if err != nil {
				t.Fatalf("Get ошибка: %v", err)
			}
			if flag.Value != tt.wantValue {
				t.Errorf("Value = %v, ожидалось %v", flag.Value, tt.wantValue)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("незакрытые ожидания: %v", err)
			}
		})
	}
}

func TestFlagRepositoryGetAllFillsDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	// В БД только один флаг, остальные дополняются включенным дефолтом
	rows := sqlmock.NewRows([]string{"name", "value", "updated_at"}).
		AddRow(models.FlagBuySellSignals, false, time.Now())
	mock.ExpectQuery(`SELECT .+ FROM global_flag`).WillReturnRows(rows)

	repo := NewFlagRepository(db)
	flags, err := repo.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll ошибка: %v", err)
	}

	if len(flags) != len(models.KnownFlags) {
		t.Fatalf("флагов %d, ожидалось %d", len(flags), len(models.KnownFlags))
	}
	for _, f := range flags {
		want := f.Name != models.FlagBuySellSignals
		if f.Value != want {
			t.Errorf("%s = %v, ожидалось %v", f.Name, f.Value, want)
		}
	}
}

func TestFlagRepositorySet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO global_flag`).
		WithArgs(models.FlagTrailingStopLoss, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewFlagRepository(db)
	if err := repo.Set(context.Background(), models.FlagTrailingStopLoss, false); err != nil {
		t.Fatalf("Set ошибка: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("незакрытые ожидания: %v", err)
	}
}

func TestFlagRepositorySetUnknownFlag(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewFlagRepository(db)
	if err := repo.Set(context.Background(), "BOGUS", true); err == nil {
		t.Error("ожидалась ошибка на неизвестном флаге")
	}
}
