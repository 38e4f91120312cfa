package service

import (
	"context"
	"time"

	"stopguard/internal/bot"
	"stopguard/internal/models"
	"stopguard/internal/repository"
)

// FlagRepositoryInterface определяет интерфейс репозитория глобальных флагов
type FlagRepositoryInterface interface {
	Get(ctx context.Context, name string) (*models.GlobalFlag, error)
	GetAll(ctx context.Context) ([]*models.GlobalFlag, error)
	Set(ctx context.Context, name string, value bool) error
}

// StopLossRepositoryInterface определяет интерфейс репозитория stop-loss процентов
type StopLossRepositoryInterface interface {
	Get(ctx context.Context, symbol string) (*models.StopLossPercentItem, error)
	GetAll(ctx context.Context) ([]*models.StopLossPercentItem, error)
	Upsert(ctx context.Context, item *models.StopLossPercentItem) error
	Delete(ctx context.Context, symbol string) error
}

// SignalsConfigRepositoryInterface определяет интерфейс репозитория конфигураций сигналов
type SignalsConfigRepositoryInterface interface {
	Get(ctx context.Context, symbol string) (*models.BuySellSignalsConfigItem, error)
	GetAll(ctx context.Context) ([]*models.BuySellSignalsConfigItem, error)
	Upsert(ctx context.Context, item *models.BuySellSignalsConfigItem) error
}

// MarketSignalRepositoryInterface определяет интерфейс репозитория рыночных сигналов
type MarketSignalRepositoryInterface interface {
	Save(ctx context.Context, signal *models.MarketSignal) error
	LastTrendSignal(ctx context.Context, symbol, timeframe string) (*models.MarketSignal, error)
	List(ctx context.Context, symbol string, limit int) ([]*models.MarketSignal, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ FlagRepositoryInterface = (*repository.FlagRepository)(nil)
var _ StopLossRepositoryInterface = (*repository.StopLossRepository)(nil)
var _ SignalsConfigRepositoryInterface = (*repository.SignalsConfigRepository)(nil)
var _ MarketSignalRepositoryInterface = (*repository.MarketSignalRepository)(nil)

// ============ Контракты ядра ============

// Сервисы закрывают собой интерфейсы, которые объявило ядро бота
var _ bot.ConfigProvider = (*ConfigService)(nil)
var _ bot.FlagProvider = (*ConfigService)(nil)
var _ bot.Notifier = (*NotificationService)(nil)
var _ bot.SignalStore = (*repository.MarketSignalRepository)(nil)
