package handlers

import (
	"context"
	"errors"
	"strings"

	"stopguard/internal/models"
	"stopguard/internal/repository"
)

// mocks_test.go - ручные mock-реализации зависимостей handler'ов

type mockConfigStore struct {
	flags         map[string]bool
	stopLoss      map[string]float64
	signalsConfig map[string]*models.BuySellSignalsConfigItem

	flagsErr error
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{
		flags:         make(map[string]bool),
		stopLoss:      make(map[string]float64),
		signalsConfig: make(map[string]*models.BuySellSignalsConfigItem),
	}
}

func (m *mockConfigStore) GetAllFlags(_ context.Context) ([]*models.GlobalFlag, error) {
	if m.flagsErr != nil {
		return nil, m.flagsErr
	}
	var out []*models.GlobalFlag
	for _, name := range models.KnownFlags {
		value, ok := m.flags[name]
		if !ok {
			value = true
		}
		out = append(out, &models.GlobalFlag{Name: name, Value: value})
	}
	return out, nil
}

func (m *mockConfigStore) SetFlag(_ context.Context, name string, value bool) error {
	if !models.IsKnownFlag(name) {
		return errors.New("unknown flag " + name)
	}
	m.flags[name] = value
	return nil
}

func (m *mockConfigStore) GetAllStopLossPercents(_ context.Context) ([]*models.StopLossPercentItem, error) {
	var out []*models.StopLossPercentItem
	for symbol, value := range m.stopLoss {
		out = append(out, &models.StopLossPercentItem{Symbol: symbol, Value: value})
	}
	return out, nil
}

func (m *mockConfigStore) GetStopLossPercent(_ context.Context, symbol string) (float64, error) {
	if value, ok := m.stopLoss[strings.ToUpper(symbol)]; ok {
		return value, nil
	}
	return m.DefaultStopLossPercent(), nil
}

func (m *mockConfigStore) SetStopLossPercent(_ context.Context, symbol string, value float64) (*models.StopLossPercentItem, error) {
	item, err := models.NewStopLossPercentItem(symbol, value)
	if err != nil {
		return nil, err
	}
	m.stopLoss[item.Symbol] = item.Value
	return item, nil
}

func (m *mockConfigStore) DeleteStopLossPercent(_ context.Context, symbol string) error {
	key := strings.ToUpper(symbol)
	if _, ok := m.stopLoss[key]; !ok {
		return repository.ErrStopLossNotFound
	}
	delete(m.stopLoss, key)
	return nil
}

func (m *mockConfigStore) DefaultStopLossPercent() float64 {
	return 2.25
}

func (m *mockConfigStore) GetSignalsConfig(_ context.Context, symbol string) (*models.BuySellSignalsConfigItem, error) {
	if item, ok := m.signalsConfig[strings.ToUpper(symbol)]; ok {
		return item, nil
	}
	item := models.NewBuySellSignalsConfigItem(symbol)
	item.EMAShortPeriod = 9
	item.EMAMidPeriod = 21
	item.EMALongPeriod = 200
	item.StopLossATRMultiplier = 1.5
	item.TakeProfitATRMultiplier = 3.0
	return item, nil
}

func (m *mockConfigStore) GetAllSignalsConfigs(_ context.Context) ([]*models.BuySellSignalsConfigItem, error) {
	var out []*models.BuySellSignalsConfigItem
	for _, item := range m.signalsConfig {
		out = append(out, item)
	}
	return out, nil
}

func (m *mockConfigStore) UpdateSignalsConfig(_ context.Context, item *models.BuySellSignalsConfigItem) error {
	if strings.TrimSpace(item.Symbol) == "" {
		return errors.New("symbol cannot be empty")
	}
	if item.EMAShortPeriod >= item.EMAMidPeriod {
		return errors.New("EMA periods must be ascending")
	}
	item.Normalize()
	m.signalsConfig[item.Symbol] = item
	return nil
}

// ============ GuardMetricsProvider mock ============

type mockGuardMetricsProvider struct {
	metrics []*models.LimitSellOrderGuardMetrics
	err     error
}

func (m *mockGuardMetricsProvider) GuardMetrics(_ context.Context) ([]*models.LimitSellOrderGuardMetrics, error) {
	return m.metrics, m.err
}

// ============ SignalHistory mock ============

type mockSignalHistory struct {
	signals []*models.MarketSignal
	err     error

	lastSymbol string
	lastLimit  int
}

func (m *mockSignalHistory) List(_ context.Context, symbol string, limit int) ([]*models.MarketSignal, error) {
	m.lastSymbol = symbol
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.signals, nil
}
