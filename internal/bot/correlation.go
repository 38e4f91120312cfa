package bot

import (
	"errors"
	"fmt"

	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

// ErrNoBackingTrades - для sell-ордера не нашлось ни одного buy-филла.
// Так бывает при ручном депозите или ордере, созданном вне бота.
// Ошибка типизирована: молчаливый ноль испортил бы все расчеты ниже.
var ErrNoBackingTrades = errors.New("no backing buy trades for sell order")

// UsageState - накопитель атрибуции buy-филлов: trade id -> суммарный
// объем, уже отнесенный к предыдущим sell-ордерам этого прохода.
//
// Передается явно из вызова в вызов (functional fold): каждый вызов
// Correlate возвращает новый накопитель, не мутируя входной. Так один
// buy-филл не засчитывается как обеспечение двух разных ордеров.
type UsageState map[string]float64

// NewUsageState возвращает пустой накопитель
func NewUsageState() UsageState {
	return make(UsageState)
}

func (s UsageState) clone() UsageState {
	out := make(UsageState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Used возвращает объем филла, уже отнесенный к предыдущим ордерам
func (s UsageState) Used(tradeID string) float64 {
	return s[tradeID]
}

// Correlate вычисляет средневзвешенную цену покупки, обеспечивающую
// sell-ордер, проходя buy-филлы в порядке выдачи биржи (от новых к старым)
// и накапливая объем до amount ордера.
//
// Fallback: если с учетом накопителя набранный объем меньше amount
// ордера (филлы разобраны предыдущими ордерами прохода), корреляция
// повторяется с чистого листа и берется более полный результат.
// Это покрывает случай, когда порядок sell-ордеров не совпадает
// с естественным FIFO покупок. При fallback входной накопитель
// возвращается без изменений: переатрибуция локальна для ордера
// и не искажает учет последующих.
func Correlate(sellOrder *models.Order, buyTrades []*models.Trade, state UsageState, pricePrecision int) (float64, UsageState, error) {
	if state == nil {
		state = NewUsageState()
	}

	avg, updated, filled := correlateOnce(sellOrder, buyTrades, state)

	if filled < sellOrder.Amount && len(state) > 0 {
		freshAvg, _, freshFilled := correlateOnce(sellOrder, buyTrades, NewUsageState())
		if freshFilled > filled {
			if freshFilled <= 0 {
				return 0, state, fmt.Errorf("order %s (%s): %w", sellOrder.ID, sellOrder.Symbol, ErrNoBackingTrades)
			}
			CorrelationFallbacks.Inc()
			return utils.RoundToPrecision(freshAvg, pricePrecision), state, nil
		}
	}

	if filled <= 0 {
		return 0, state, fmt.Errorf("order %s (%s): %w", sellOrder.ID, sellOrder.Symbol, ErrNoBackingTrades)
	}
	return utils.RoundToPrecision(avg, pricePrecision), updated, nil
}

// correlateOnce - один проход атрибуции: возвращает среднюю цену,
// обновленный накопитель и набранный объем
func correlateOnce(sellOrder *models.Order, buyTrades []*models.Trade, state UsageState) (float64, UsageState, float64) {
	updated := state.clone()

	var filled, weightedSum float64
	remaining := sellOrder.Amount

	for _, trade := range buyTrades {
		if remaining <= 0 {
			break
		}

		available := trade.AmountAfterFee() - updated[trade.ID]
		if available <= 0 {
			continue
		}

		consumed := available
		if remaining < available {
			consumed = remaining
		}

		updated[trade.ID] += consumed
		weightedSum += trade.Price * consumed
		filled += consumed
		remaining -= consumed
	}

	if filled <= 0 {
		return 0, state, 0
	}
	return weightedSum / filled, updated, filled
}
