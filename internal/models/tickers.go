package models

import (
	"errors"
	"time"
)

// ErrNoPrice возвращается когда в тикере нет ни close, ни bid/ask.
// Молчаливый дефолт в ноль здесь недопустим: нулевая цена
// моментально сработала бы как пробой safeguard-стопа.
var ErrNoPrice = errors.New("tickers: neither close nor bid/ask price available")

// SymbolTickers - текущий рыночный снимок по символу.
//
// Обновляется на каждом проходе guard-задач, никогда не персистится.
// Bid/Ask опциональны: мелкие рынки Bit2Me их не всегда отдают,
// тогда используется close.
type SymbolTickers struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
}

// AskOrClose возвращает ask, либо close если ask отсутствует.
// Используется для оценки цены немедленной покупки.
func (t *SymbolTickers) AskOrClose() float64 {
	if t.Ask > 0 {
		return t.Ask
	}
	return t.Close
}

// BidOrClose возвращает bid, либо close если bid отсутствует.
// Используется для оценки выручки немедленной продажи.
func (t *SymbolTickers) BidOrClose() float64 {
	if t.Bid > 0 {
		return t.Bid
	}
	return t.Close
}

// Validate проверяет, что тикер пригоден для финансовых расчетов
func (t *SymbolTickers) Validate() error {
	if t.Close <= 0 && t.Bid <= 0 && t.Ask <= 0 {
		return ErrNoPrice
	}
	return nil
}

// SymbolMarketConfig - торговые ограничения биржи для символа.
//
// Статичны для символа, кэшируются после первого запроса.
type SymbolMarketConfig struct {
	Symbol          string  `json:"symbol"`
	PricePrecision  int     `json:"price_precision"`  // знаков после запятой для цены
	AmountPrecision int     `json:"amount_precision"` // знаков после запятой для количества
	MinAmount       float64 `json:"min_amount"`
	MaxAmount       float64 `json:"max_amount"`
	MinPrice        float64 `json:"min_price"`
	MaxPrice        float64 `json:"max_price"`
}

// Candle - одна OHLCV свеча (вход калькулятора индикаторов)
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
