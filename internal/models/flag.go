package models

import "time"

// Имена глобальных флагов.
// Каждый флаг гейтит запуск соответствующей периодической задачи.
const (
	FlagTrailingStopLoss   = "TRAILING_STOP_LOSS"
	FlagLimitSellGuard     = "LIMIT_SELL_ORDER_GUARD"
	FlagBuySellSignals     = "BUY_SELL_SIGNALS"
	FlagAutoExitSell1h     = "AUTO_EXIT_SELL_1H"
	FlagAutoExitDivergence = "AUTO_EXIT_DIVERGENCE"
	FlagAutoExitATRProfit  = "AUTO_EXIT_ATR_TAKE_PROFIT"
)

// KnownFlags - статический реестр всех флагов.
// Набор задач фиксирован и известен на этапе компиляции.
var KnownFlags = []string{
	FlagTrailingStopLoss,
	FlagLimitSellGuard,
	FlagBuySellSignals,
	FlagAutoExitSell1h,
	FlagAutoExitDivergence,
	FlagAutoExitATRProfit,
}

// GlobalFlag - именованный булев переключатель.
//
// Отсутствие записи означает "включено" (fail-safe: защитные задачи
// работают, пока их явно не выключили).
type GlobalFlag struct {
	Name      string    `json:"name" db:"name"`
	Value     bool      `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsKnownFlag проверяет имя флага по реестру
func IsKnownFlag(name string) bool {
	for _, f := range KnownFlags {
		if f == name {
			return true
		}
	}
	return false
}
