package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"stopguard/internal/models"
	"stopguard/internal/repository"
	"stopguard/pkg/utils"
)

// mocks_test.go - ручные mock-реализации репозиториев и транспорта
// для тестов сервисного слоя.

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error", Format: "console"})
}

// ============ SignalsConfigRepository mock ============

type mockSignalsConfigRepo struct {
	items  map[string]*models.BuySellSignalsConfigItem
	getErr error
}

func newMockSignalsConfigRepo() *mockSignalsConfigRepo {
	return &mockSignalsConfigRepo{items: make(map[string]*models.BuySellSignalsConfigItem)}
}

func (m *mockSignalsConfigRepo) Get(_ context.Context, symbol string) (*models.BuySellSignalsConfigItem, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	item, ok := m.items[strings.ToUpper(symbol)]
	if !ok {
		return nil, repository.ErrSignalsConfigNotFound
	}
	return item, nil
}

func (m *mockSignalsConfigRepo) GetAll(_ context.Context) ([]*models.BuySellSignalsConfigItem, error) {
	var out []*models.BuySellSignalsConfigItem
	for _, item := range m.items {
		out = append(out, item)
	}
	return out, nil
}

func (m *mockSignalsConfigRepo) Upsert(_ context.Context, item *models.BuySellSignalsConfigItem) error {
	item.Normalize()
	m.items[item.Symbol] = item
	return nil
}

// ============ StopLossRepository mock ============

type mockStopLossRepo struct {
	items map[string]*models.StopLossPercentItem
}

func newMockStopLossRepo() *mockStopLossRepo {
	return &mockStopLossRepo{items: make(map[string]*models.StopLossPercentItem)}
}

func (m *mockStopLossRepo) Get(_ context.Context, symbol string) (*models.StopLossPercentItem, error) {
	item, ok := m.items[strings.ToUpper(symbol)]
	if !ok {
		return nil, repository.ErrStopLossNotFound
	}
	return item, nil
}

func (m *mockStopLossRepo) GetAll(_ context.Context) ([]*models.StopLossPercentItem, error) {
	var out []*models.StopLossPercentItem
	for _, item := range m.items {
		out = append(out, item)
	}
	return out, nil
}

func (m *mockStopLossRepo) Upsert(_ context.Context, item *models.StopLossPercentItem) error {
	m.items[item.Symbol] = item
	return nil
}

func (m *mockStopLossRepo) Delete(_ context.Context, symbol string) error {
	key := strings.ToUpper(symbol)
	if _, ok := m.items[key]; !ok {
		return repository.ErrStopLossNotFound
	}
	delete(m.items, key)
	return nil
}

// ============ FlagRepository mock ============

type mockFlagRepo struct {
	values map[string]bool
	getErr error
}

func newMockFlagRepo() *mockFlagRepo {
	return &mockFlagRepo{values: make(map[string]bool)}
}

func (m *mockFlagRepo) Get(_ context.Context, name string) (*models.GlobalFlag, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if !models.IsKnownFlag(name) {
		return nil, errors.New("unknown flag")
	}
	value, ok := m.values[name]
	if !ok {
		value = true
	}
	return &models.GlobalFlag{Name: name, Value: value, UpdatedAt: time.Now()}, nil
}

func (m *mockFlagRepo) GetAll(_ context.Context) ([]*models.GlobalFlag, error) {
	var out []*models.GlobalFlag
	for _, name := range models.KnownFlags {
		flag, _ := m.Get(context.Background(), name)
		out = append(out, flag)
	}
	return out, nil
}

func (m *mockFlagRepo) Set(_ context.Context, name string, value bool) error {
	m.values[name] = value
	return nil
}

// ============ MessageSender mock ============

type mockSender struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (m *mockSender) Send(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, text)
	return nil
}

func (m *mockSender) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}
