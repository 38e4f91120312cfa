package exchange

import (
	"errors"
	"testing"

	"stopguard/internal/models"
)

func TestNewExchange(t *testing.T) {
	tests := []struct {
		name      string
		exchange  string
		wantError bool
		wantName  string
	}{
		{"bit2me", "bit2me", false, "bit2me"},
		{"mexc", "mexc", false, "mexc"},
		{"регистр не важен", "Bit2Me", false, "bit2me"},
		{"неизвестная биржа", "binance", true, ""},
		{"пустое имя", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := NewExchange(tt.exchange, "key", "secret")
			if tt.wantError {
				if err == nil {
					t.Errorf("NewExchange(%q) ожидалась ошибка", tt.exchange)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewExchange(%q) ошибка: %v", tt.exchange, err)
			}
			if ex.GetName() != tt.wantName {
				t.Errorf("GetName() = %q, ожидалось %q", ex.GetName(), tt.wantName)
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("bit2me") || !IsSupported("MEXC") {
		t.Error("bit2me и mexc должны поддерживаться")
	}
	if IsSupported("kraken") {
		t.Error("kraken не должен поддерживаться")
	}
}

func TestExchangeErrorRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       *ExchangeError
		retryable bool
		auth      bool
	}{
		{"сетевая ошибка", newNetworkError("bit2me", errors.New("connection refused")), true, false},
		{"429 too many requests", newHTTPError("bit2me", 429, "", "rate limited"), true, false},
		{"408 timeout", newHTTPError("mexc", 408, "", "timeout"), true, false},
		{"500 internal", newHTTPError("bit2me", 500, "", "internal"), true, false},
		{"503 unavailable", newHTTPError("mexc", 503, "", "maintenance"), true, false},
		{"400 bad request", newHTTPError("bit2me", 400, "", "bad params"), false, false},
		{"404 not found", newHTTPError("bit2me", 404, "", "no such order"), false, false},
		{"401 unauthorized", newHTTPError("mexc", 401, "", "bad key"), false, true},
		{"403 forbidden", newHTTPError("bit2me", 403, "", "no permission"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.retryable {
				t.Errorf("Retryable() = %v, ожидалось %v", got, tt.retryable)
			}
			if got := tt.err.IsAuthError(); got != tt.auth {
				t.Errorf("IsAuthError() = %v, ожидалось %v", got, tt.auth)
			}
		})
	}
}

func TestIsExchangeError(t *testing.T) {
	exErr := newHTTPError("bit2me", 500, "SRV", "boom")
	wrapped := errors.Join(errors.New("context"), exErr)

	if got, ok := IsExchangeError(wrapped); !ok || got.HTTPStatus != 500 {
		t.Errorf("IsExchangeError не распознал обернутую ошибку: %v, %v", got, ok)
	}
	if _, ok := IsExchangeError(errors.New("plain")); ok {
		t.Error("IsExchangeError распознал обычную ошибку")
	}
}

func TestBit2meInterval(t *testing.T) {
	tests := []struct {
		timeframe string
		want      string
		wantError bool
	}{
		{"1m", "1", false},
		{"1h", "60", false},
		{"4h", "240", false},
		{"1d", "1440", false},
		{"2h", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := bit2meInterval(tt.timeframe)
		if tt.wantError {
			if err == nil {
				t.Errorf("bit2meInterval(%q) ожидалась ошибка", tt.timeframe)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("bit2meInterval(%q) = %q, %v, ожидалось %q", tt.timeframe, got, err, tt.want)
		}
	}
}

func TestMexcInterval(t *testing.T) {
	tests := []struct {
		timeframe string
		want      string
		wantError bool
	}{
		{"5m", "5m", false},
		{"1h", "60m", false},
		{"4h", "4h", false},
		{"3h", "", true},
	}

	for _, tt := range tests {
		got, err := mexcInterval(tt.timeframe)
		if tt.wantError {
			if err == nil {
				t.Errorf("mexcInterval(%q) ожидалась ошибка", tt.timeframe)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("mexcInterval(%q) = %q, %v, ожидалось %q", tt.timeframe, got, err, tt.want)
		}
	}
}

func TestMexcOrderStatusMapping(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"NEW", models.OrderStatusOpen},
		{"FILLED", models.OrderStatusFilled},
		{"PARTIALLY_FILLED", models.OrderStatusPartiallyFilled},
		{"CANCELED", models.OrderStatusCancelled},
		{"PARTIALLY_CANCELED", models.OrderStatusPartiallyCancelled},
		{"EXPIRED", "expired"},
	}

	for _, tt := range tests {
		if got := mexcOrderStatus(tt.raw); got != tt.want {
			t.Errorf("mexcOrderStatus(%q) = %q, ожидалось %q", tt.raw, got, tt.want)
		}
	}
}

func TestMexcOrderToModel(t *testing.T) {
	stop := "25950.5"
	raw := mexcOrder{
		OrderID:   "12345",
		Symbol:    "BTCUSDT",
		Side:      "SELL",
		Type:      "STOP_LIMIT",
		Status:    "NEW",
		OrigQty:   "0.5",
		Price:     "26000.0",
		StopPrice: stop,
		Time:      1700000000000,
	}

	order, err := raw.toModel("BTC/USDT")
	if err != nil {
		t.Fatalf("toModel ошибка: %v", err)
	}
	if order.Symbol != "BTC/USDT" {
		t.Errorf("Symbol = %q, ожидалось BTC/USDT", order.Symbol)
	}
	if order.Side != models.SideSell {
		t.Errorf("Side = %q, ожидалось sell", order.Side)
	}
	if order.OrderType != models.OrderTypeStopLimit {
		t.Errorf("OrderType = %q, ожидалось stop-limit", order.OrderType)
	}
	if order.StopPrice == nil || *order.StopPrice != 25950.5 {
		t.Errorf("StopPrice = %v, ожидалось 25950.5", order.StopPrice)
	}
	if got := order.EffectivePrice(); got != 25950.5 {
		t.Errorf("EffectivePrice() = %v, ожидалось стоп-цену", got)
	}
}

func TestMexcCandleFromRow(t *testing.T) {
	row := []interface{}{
		float64(1700000000000),
		"26000.1", "26100.2", "25900.3", "26050.4", "123.45",
		float64(1700003600000),
	}

	candle, err := mexcCandleFromRow(row)
	if err != nil {
		t.Fatalf("mexcCandleFromRow ошибка: %v", err)
	}
	if candle.Open != 26000.1 || candle.High != 26100.2 || candle.Low != 25900.3 ||
		candle.Close != 26050.4 || candle.Volume != 123.45 {
		t.Errorf("неверный разбор свечи: %+v", candle)
	}

	if _, err := mexcCandleFromRow([]interface{}{float64(1), "bad", "2", "3", "4", "5"}); err == nil {
		t.Error("ожидалась ошибка разбора некорректной цены")
	}
}

func TestBit2meOrderToModel(t *testing.T) {
	raw := bit2meOrder{
		ID:        "ord-1",
		Symbol:    "ETH/USDT",
		Side:      "sell",
		OrderType: "stop-limit",
		Status:    "inactive",
		Amount:    "2.0",
		Price:     "1800",
		StopPrice: "1810",
		CreatedAt: 1700000000000,
	}

	order, err := raw.toModel()
	if err != nil {
		t.Fatalf("toModel ошибка: %v", err)
	}
	if !order.IsStopLimit() {
		t.Error("ожидался stop-limit ордер")
	}
	if order.EffectivePrice() != 1810 {
		t.Errorf("EffectivePrice() = %v, ожидалось 1810", order.EffectivePrice())
	}
}

func TestBit2meSignDeterministic(t *testing.T) {
	b := NewBit2Me("key", "secret")
	s1 := b.sign("123", "/v1/trading/order?side=sell", "")
	s2 := b.sign("123", "/v1/trading/order?side=sell", "")
	if s1 != s2 || s1 == "" {
		t.Error("подпись должна быть детерминированной и непустой")
	}
	if s1 == b.sign("124", "/v1/trading/order?side=sell", "") {
		t.Error("разные nonce должны давать разные подписи")
	}
}
