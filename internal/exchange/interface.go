package exchange

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"stopguard/internal/models"
)

// Exchange определяет унифицированный интерфейс шлюза биржи.
//
// Ядро guard-задач зависит только от этого интерфейса; конкретная
// биржа (Bit2Me или MEXC) выбирается конфигурацией при старте.
type Exchange interface {
	// GetName возвращает имя биржи
	GetName() string

	// GetPendingSellOrders возвращает открытые sell-ордера.
	// orderType фильтрует по типу ("limit", "stop-limit"); пустая
	// строка = все типы. Статусы неявно ограничены {open, inactive}.
	GetPendingSellOrders(ctx context.Context, orderType string) ([]*models.Order, error)

	// GetPendingBuyOrders возвращает открытые buy-ордера
	// (та же семантика фильтров, что у GetPendingSellOrders)
	GetPendingBuyOrders(ctx context.Context, orderType string) ([]*models.Order, error)

	// GetTrades возвращает историю филлов по символу и стороне,
	// отсортированную от новых к старым
	GetTrades(ctx context.Context, side, symbol string) ([]*models.Trade, error)

	// GetSingleTickersBySymbol возвращает текущий тикер одного символа
	GetSingleTickersBySymbol(ctx context.Context, symbol string) (*models.SymbolTickers, error)

	// GetTickersBySymbols возвращает тикеры нескольких символов
	// (один батч-запрос, а не N одиночных)
	GetTickersBySymbols(ctx context.Context, symbols []string) ([]*models.SymbolTickers, error)

	// FetchOHLCV возвращает свечи от старых к новым.
	// limit <= 0 означает дефолт биржевого клиента (251: гарантирует
	// >=200 рабочих строк после прогрева индикаторов и отбрасывания
	// незакрытой свечи).
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)

	// GetTradingMarketConfigBySymbol возвращает торговые ограничения
	// символа (кэшируются после первого запроса)
	GetTradingMarketConfigBySymbol(ctx context.Context, symbol string) (*models.SymbolMarketConfig, error)

	// CreateOrder размещает ордер и возвращает его биржевое представление
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)

	// CancelOrderByID отменяет ордер
	CancelOrderByID(ctx context.Context, id string) error

	// Close закрывает соединения с биржей
	Close() error
}

// DefaultOHLCVLimit - дефолтное количество запрашиваемых свечей
const DefaultOHLCVLimit = 251

// ExchangeError представляет ошибку от биржи.
//
// Классификация определяет политику retry на границе шлюза:
// транзиентные ошибки (сеть, 5xx, rate limit) повторяются,
// авторитетные отказы (4xx кроме 429) - нет.
type ExchangeError struct {
	Exchange   string
	Code       string // код ошибки биржи, если есть
	HTTPStatus int    // 0 = до HTTP-ответа (сетевая ошибка)
	Message    string
	Original   error
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return e.Exchange + " [" + e.Code + "]: " + e.Message
	}
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для errors.Is/errors.As
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Retryable реализует retry.RetryableError.
//
// Транзиентные: сетевые ошибки (HTTPStatus == 0), 5xx, 408, 429.
func (e *ExchangeError) Retryable() bool {
	switch {
	case e.HTTPStatus == 0:
		return true
	case e.HTTPStatus == http.StatusTooManyRequests:
		return true
	case e.HTTPStatus == http.StatusRequestTimeout:
		return true
	case e.HTTPStatus >= 500:
		return true
	default:
		return false
	}
}

// IsAuthError возвращает true для ошибок авторизации/подписи
func (e *ExchangeError) IsAuthError() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// newNetworkError оборачивает сетевую ошибку (до HTTP-статуса)
func newNetworkError(exchangeName string, err error) *ExchangeError {
	return &ExchangeError{
		Exchange: exchangeName,
		Message:  err.Error(),
		Original: err,
	}
}

// newHTTPError строит ошибку из HTTP-статуса и тела ответа
func newHTTPError(exchangeName string, status int, code, message string) *ExchangeError {
	if message == "" {
		message = http.StatusText(status)
	}
	if code == "" {
		code = strconv.Itoa(status)
	}
	return &ExchangeError{
		Exchange:   exchangeName,
		Code:       code,
		HTTPStatus: status,
		Message:    message,
	}
}

// IsExchangeError извлекает *ExchangeError из цепочки ошибок
func IsExchangeError(err error) (*ExchangeError, bool) {
	var exchErr *ExchangeError
	if errors.As(err, &exchErr) {
		return exchErr, true
	}
	return nil, false
}
