package models

import "time"

// Стороны ордера
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Типы ордеров
const (
	OrderTypeMarket    = "market"
	OrderTypeLimit     = "limit"
	OrderTypeStopLimit = "stop-limit"
)

// Статусы ордера на бирже
const (
	OrderStatusOpen               = "open"
	OrderStatusFilled             = "filled"
	OrderStatusCancelled          = "cancelled"
	OrderStatusInactive           = "inactive"
	OrderStatusPartiallyFilled    = "partially_filled"
	OrderStatusPartiallyCancelled = "partially_cancelled"
)

// Order представляет ордер на бирже.
//
// Ордер принадлежит бирже: ядро читает его на каждом проходе guard-задач
// и никогда не изменяет локально. Замена ордера = cancel + create.
type Order struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"` // например "ETH/EUR"
	Side      string    `json:"side"`
	OrderType string    `json:"order_type"`
	Status    string    `json:"status"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	StopPrice *float64  `json:"stop_price,omitempty"` // только для stop-limit
	CreatedAt time.Time `json:"created_at"`
}

// EffectivePrice возвращает стоп-цену для stop-limit ордеров,
// иначе лимитную цену. Именно эта цена используется при отборе
// buy-ордеров в trailing-алгоритме.
func (o *Order) EffectivePrice() float64 {
	if o.StopPrice != nil {
		return *o.StopPrice
	}
	return o.Price
}

// IsStopLimit возвращает true для stop-limit ордера
func (o *Order) IsStopLimit() bool {
	return o.OrderType == OrderTypeStopLimit
}

// Trade представляет исторический филл (исполненную сделку) по символу.
//
// Неизменяем после получения с биржи; используется только корреляцией
// для расчета средневзвешенной цены покупки.
type Trade struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	FeeAmount float64 `json:"fee_amount"`
}

// AmountAfterFee возвращает количество актива за вычетом комиссии.
// Комиссия на покупке удерживается в активе, поэтому реально доступно
// для продажи именно amount - fee_amount.
func (t *Trade) AmountAfterFee() float64 {
	return t.Amount - t.FeeAmount
}
