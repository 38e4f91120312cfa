package bot

import (
	"context"
	"sync"
	"time"

	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

// ============================================================
// Ручные моки коллабораторов для тестов ядра
// ============================================================

type mockExchange struct {
	mu sync.Mutex

	sellOrders []*models.Order
	buyOrders  []*models.Order
	trades     map[string][]*models.Trade // symbol -> buy-филлы
	tickers    map[string]*models.SymbolTickers
	candles    map[string][]models.Candle // symbol -> свечи
	configs    map[string]*models.SymbolMarketConfig

	cancelled []string
	created   []*models.Order

	cancelErr error
	createErr error
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		trades:  make(map[string][]*models.Trade),
		tickers: make(map[string]*models.SymbolTickers),
		candles: make(map[string][]models.Candle),
		configs: make(map[string]*models.SymbolMarketConfig),
	}
}

func (m *mockExchange) GetName() string { return "mock" }

func (m *mockExchange) GetPendingSellOrders(_ context.Context, orderType string) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range m.sellOrders {
		if orderType == "" || o.OrderType == orderType {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockExchange) GetPendingBuyOrders(_ context.Context, orderType string) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range m.buyOrders {
		if orderType == "" || o.OrderType == orderType {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockExchange) GetTrades(_ context.Context, side, symbol string) ([]*models.Trade, error) {
	return m.trades[symbol], nil
}

func (m *mockExchange) GetSingleTickersBySymbol(_ context.Context, symbol string) (*models.SymbolTickers, error) {
	return m.tickers[symbol], nil
}

func (m *mockExchange) GetTickersBySymbols(_ context.Context, symbols []string) ([]*models.SymbolTickers, error) {
	var out []*models.SymbolTickers
	for _, s := range symbols {
		if tk, ok := m.tickers[s]; ok {
			out = append(out, tk)
		}
	}
	return out, nil
}

func (m *mockExchange) FetchOHLCV(_ context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	return m.candles[symbol], nil
}

func (m *mockExchange) GetTradingMarketConfigBySymbol(_ context.Context, symbol string) (*models.SymbolMarketConfig, error) {
	if cfg, ok := m.configs[symbol]; ok {
		return cfg, nil
	}
	return &models.SymbolMarketConfig{Symbol: symbol, PricePrecision: 2, AmountPrecision: 8}, nil
}

func (m *mockExchange) CreateOrder(_ context.Context, order *models.Order) (*models.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, order)
	return order, nil
}

func (m *mockExchange) CancelOrderByID(_ context.Context, id string) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockExchange) Close() error { return nil }

// ------------------------------------------------------------

type mockConfigProvider struct {
	signalsConfigs map[string]*models.BuySellSignalsConfigItem
	stopLossPct    map[string]float64
	defaultStopPct float64
	takerFee       float64
	quote          string
}

func newMockConfigProvider() *mockConfigProvider {
	return &mockConfigProvider{
		signalsConfigs: make(map[string]*models.BuySellSignalsConfigItem),
		stopLossPct:    make(map[string]float64),
		defaultStopPct: 2.25,
		takerFee:       0.0026,
		quote:          "USDT",
	}
}

func (m *mockConfigProvider) GetSignalsConfig(_ context.Context, symbol string) (*models.BuySellSignalsConfigItem, error) {
	if cfg, ok := m.signalsConfigs[symbol]; ok {
		return cfg, nil
	}
	cfg := models.NewBuySellSignalsConfigItem(symbol)
	cfg.EMAShortPeriod = 9
	cfg.EMAMidPeriod = 21
	cfg.EMALongPeriod = 50
	cfg.StopLossATRMultiplier = 1.5
	cfg.TakeProfitATRMultiplier = 3.0
	return cfg, nil
}

func (m *mockConfigProvider) GetAllSignalsConfigs(_ context.Context) ([]*models.BuySellSignalsConfigItem, error) {
	out := make([]*models.BuySellSignalsConfigItem, 0, len(m.signalsConfigs))
	for _, cfg := range m.signalsConfigs {
		out = append(out, cfg)
	}
	return out, nil
}

func (m *mockConfigProvider) GetStopLossPercent(_ context.Context, symbol string) (float64, error) {
	if v, ok := m.stopLossPct[symbol]; ok {
		return v, nil
	}
	return m.defaultStopPct, nil
}

func (m *mockConfigProvider) TakerFee() float64     { return m.takerFee }
func (m *mockConfigProvider) QuoteCurrency() string { return m.quote }

// ------------------------------------------------------------

type mockFlagProvider struct {
	disabled map[string]bool
}

func newMockFlagProvider() *mockFlagProvider {
	return &mockFlagProvider{disabled: make(map[string]bool)}
}

func (m *mockFlagProvider) IsEnabled(_ context.Context, name string) (bool, error) {
	return !m.disabled[name], nil
}

// ------------------------------------------------------------

type mockNotifier struct {
	mu          sync.Mutex
	fatals      []string
	forcedExits []string // причины
	warnings    []string
}

func (m *mockNotifier) NotifyFatal(_ context.Context, component string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fatals = append(m.fatals, component+": "+err.Error())
}

func (m *mockNotifier) NotifyForcedExit(_ context.Context, _ *models.Order, reason string, _ *models.LimitSellOrderGuardMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedExits = append(m.forcedExits, reason)
}

func (m *mockNotifier) NotifyWarning(_ context.Context, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, message)
}

// ------------------------------------------------------------

type mockSignalStore struct {
	mu      sync.Mutex
	saved   []*models.MarketSignal
	deleted time.Time
}

func (m *mockSignalStore) Save(_ context.Context, signal *models.MarketSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, signal)
	return nil
}

func (m *mockSignalStore) LastTrendSignal(_ context.Context, symbol, timeframe string) (*models.MarketSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		s := m.saved[i]
		if s.Symbol == symbol && s.Timeframe == timeframe && s.IsTrendSignal() {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockSignalStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = cutoff
	return 0, nil
}

// ------------------------------------------------------------

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error", Format: "console"})
}
