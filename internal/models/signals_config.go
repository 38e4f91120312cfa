package models

import (
	"fmt"
	"strings"
	"time"
)

// Границы ручного stop-loss процента.
// Значения вне диапазона отклоняются на этапе конструирования,
// а не при использовании: некорректный процент не должен дожить
// до расчета safeguard-цены.
const (
	MinStopLossPercent = 0.25
	MaxStopLossPercent = 20.0
)

// BuySellSignalsConfigItem - конфигурация сигналов и авто-выходов
// для одной криптовалюты (не торговой пары: "ETH", не "ETH/EUR").
//
// Создается лениво с процессными дефолтами при первом обращении,
// персистится только при явном изменении пользователем.
type BuySellSignalsConfigItem struct {
	Symbol string `json:"symbol" db:"symbol"` // хранится в верхнем регистре

	EMAShortPeriod int `json:"ema_short_period" db:"ema_short_period"`
	EMAMidPeriod   int `json:"ema_mid_period" db:"ema_mid_period"`
	EMALongPeriod  int `json:"ema_long_period" db:"ema_long_period"`

	StopLossATRMultiplier   float64 `json:"stop_loss_atr_multiplier" db:"stop_loss_atr_multiplier"`
	TakeProfitATRMultiplier float64 `json:"take_profit_atr_multiplier" db:"take_profit_atr_multiplier"`

	EnableADXFilter bool    `json:"enable_adx_filter" db:"enable_adx_filter"`
	ADXThreshold    float64 `json:"adx_threshold" db:"adx_threshold"`

	EnableBuyVolumeFilter  bool    `json:"enable_buy_volume_filter" db:"enable_buy_volume_filter"`
	BuyVolumeThreshold     float64 `json:"buy_volume_threshold" db:"buy_volume_threshold"`
	EnableSellVolumeFilter bool    `json:"enable_sell_volume_filter" db:"enable_sell_volume_filter"`
	SellVolumeThreshold    float64 `json:"sell_volume_threshold" db:"sell_volume_threshold"`

	EnableExitOnSellSignal bool `json:"enable_exit_on_sell_signal" db:"enable_exit_on_sell_signal"`
	EnableExitOnDivergence bool `json:"enable_exit_on_divergence" db:"enable_exit_on_divergence"`
	EnableExitOnTakeProfit bool `json:"enable_exit_on_take_profit" db:"enable_exit_on_take_profit"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBuySellSignalsConfigItem создает конфигурацию с нормализованным символом
func NewBuySellSignalsConfigItem(symbol string) *BuySellSignalsConfigItem {
	return &BuySellSignalsConfigItem{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
	}
}

// Normalize приводит символ к инварианту хранения (верхний регистр)
func (c *BuySellSignalsConfigItem) Normalize() {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
}

// StopLossPercentItem - ручной stop-loss процент для одной криптовалюты.
//
// При отсутствии записи используется процессный дефолт
// (trailing stop percent из конфигурации).
type StopLossPercentItem struct {
	Symbol    string    `json:"symbol" db:"symbol"`
	Value     float64   `json:"value" db:"value"` // проценты: 2.25 = 2.25%
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewStopLossPercentItem создает запись с валидацией диапазона
func NewStopLossPercentItem(symbol string, value float64) (*StopLossPercentItem, error) {
	if value < MinStopLossPercent || value > MaxStopLossPercent {
		return nil, fmt.Errorf("stop loss percent %.4f out of range [%.2f, %.2f]",
			value, MinStopLossPercent, MaxStopLossPercent)
	}
	return &StopLossPercentItem{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Value:  value,
	}, nil
}
