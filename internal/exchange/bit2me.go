package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"stopguard/internal/models"
	"stopguard/pkg/ratelimit"
	"stopguard/pkg/retry"
	"stopguard/pkg/utils"
)

const (
	bit2meName    = "bit2me"
	bit2meBaseURL = "https://gateway.bit2me.com"
)

var bit2meJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Bit2Me реализует интерфейс Exchange для Bit2Me Trading API.
//
// Все публичные методы повторяют транзиентные ошибки с backoff
// (retry.IsRetryable); авторитетные отказы биржи (4xx кроме 429)
// возвращаются сразу.
type Bit2Me struct {
	apiKey    string
	secretKey string

	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter

	// Кэш market-config: ограничения символа статичны
	marketConfigs sync.Map // map[string]*models.SymbolMarketConfig

	readRetry  retry.Config
	writeRetry retry.Config
}

// NewBit2Me создает экземпляр шлюза Bit2Me
func NewBit2Me(apiKey, secretKey string) *Bit2Me {
	limiter := ratelimit.NewMultiLimiter()
	limiter.Add(ratelimit.CategoryMarketData, 8, 16)
	limiter.Add(ratelimit.CategoryAccount, 8, 16)
	limiter.Add(ratelimit.CategoryTrading, 4, 8)

	readRetry := retry.DefaultConfig()
	readRetry.RetryIf = retry.IsRetryable
	writeRetry := retry.OrderConfig()
	writeRetry.RetryIf = retry.IsRetryable

	return &Bit2Me{
		apiKey:     apiKey,
		secretKey:  secretKey,
		httpClient: NewHTTPClient(DefaultHTTPClientConfig()),
		limiter:    limiter,
		readRetry:  readRetry,
		writeRetry: writeRetry,
	}
}

func (b *Bit2Me) GetName() string {
	return bit2meName
}

// sign строит подпись запроса: base64(HMAC-SHA512(nonce:path:body))
func (b *Bit2Me) sign(nonce, pathWithQuery, body string) string {
	message := nonce + ":" + pathWithQuery
	if body != "" {
		message += ":" + body
	}
	h := hmac.New(sha512.New, []byte(b.secretKey))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// doRequest выполняет один HTTP запрос к Bit2Me и классифицирует ошибку.
// Retry здесь не делается - это ответственность вызывающего метода.
func (b *Bit2Me) doRequest(ctx context.Context, method, endpoint string, query url.Values, payload interface{}, category string) ([]byte, error) {
	if err := b.limiter.Wait(ctx, category); err != nil {
		return nil, err
	}

	pathWithQuery := endpoint
	if len(query) > 0 {
		pathWithQuery += "?" + query.Encode()
	}

	var bodyStr string
	var bodyReader io.Reader
	if payload != nil {
		raw, err := bit2meJSON.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(raw)
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, bit2meBaseURL+pathWithQuery, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("X-B2M-API-KEY", b.apiKey)
	req.Header.Set("X-B2M-NONCE", nonce)
	req.Header.Set("X-B2M-SIGNATURE", b.sign(nonce, pathWithQuery, bodyStr))

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, newNetworkError(bit2meName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetworkError(bit2meName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = bit2meJSON.Unmarshal(body, &errResp)
		return nil, newHTTPError(bit2meName, resp.StatusCode, errResp.Code, errResp.Message)
	}

	return body, nil
}

// ============================================================
// Ордера
// ============================================================

// bit2meOrder - представление ордера в ответах Trading API
type bit2meOrder struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderType string  `json:"orderType"`
	Status    string  `json:"status"`
	Amount    string  `json:"amount"`
	Price     string  `json:"price"`
	StopPrice string  `json:"stopPrice,omitempty"`
	CreatedAt int64   `json:"createdAt"`
}

func (o *bit2meOrder) toModel() (*models.Order, error) {
	amount, err := strconv.ParseFloat(o.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("parse order amount %q: %w", o.Amount, err)
	}

	var price float64
	if o.Price != "" {
		price, err = strconv.ParseFloat(o.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("parse order price %q: %w", o.Price, err)
		}
	}

	order := &models.Order{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		OrderType: o.OrderType,
		Status:    o.Status,
		Amount:    amount,
		Price:     price,
		CreatedAt: time.UnixMilli(o.CreatedAt).UTC(),
	}

	if o.StopPrice != "" {
		stopPrice, err := strconv.ParseFloat(o.StopPrice, 64)
		if err != nil {
			return nil, fmt.Errorf("parse order stop price %q: %w", o.StopPrice, err)
		}
		order.StopPrice = &stopPrice
	}

	return order, nil
}

func (b *Bit2Me) getPendingOrders(ctx context.Context, side, orderType string) ([]*models.Order, error) {
	query := url.Values{}
	query.Set("status_in", models.OrderStatusOpen+","+models.OrderStatusInactive)
	query.Set("side", side)
	if orderType != "" {
		query.Set("orderType", orderType)
	}

	return retry.DoWithResult(ctx, func() ([]*models.Order, error) {
		body, err := b.doRequest(ctx, http.MethodGet, "/v1/trading/order", query, nil, ratelimit.CategoryAccount)
		if err != nil {
			return nil, err
		}

		var raw []bit2meOrder
		if err := bit2meJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode orders response: %w", err)
		}

		orders := make([]*models.Order, 0, len(raw))
		for i := range raw {
			order, err := raw[i].toModel()
			if err != nil {
				return nil, err
			}
			orders = append(orders, order)
		}
		return orders, nil
	}, b.readRetry)
}

func (b *Bit2Me) GetPendingSellOrders(ctx context.Context, orderType string) ([]*models.Order, error) {
	return b.getPendingOrders(ctx, models.SideSell, orderType)
}

func (b *Bit2Me) GetPendingBuyOrders(ctx context.Context, orderType string) ([]*models.Order, error) {
	return b.getPendingOrders(ctx, models.SideBuy, orderType)
}

// CreateOrder размещает ордер. Цены передаются строками с уже
// применённой точностью символа - округление выполняет вызывающий.
func (b *Bit2Me) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := utils.ValidateSymbolPair(order.Symbol); err != nil {
		return nil, err
	}
	if err := utils.ValidatePositive("amount", order.Amount); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"symbol":    order.Symbol,
		"side":      order.Side,
		"orderType": order.OrderType,
		"amount":    strconv.FormatFloat(order.Amount, 'f', -1, 64),
	}
	if order.OrderType != models.OrderTypeMarket {
		payload["price"] = strconv.FormatFloat(order.Price, 'f', -1, 64)
	}
	if order.StopPrice != nil {
		payload["stopPrice"] = strconv.FormatFloat(*order.StopPrice, 'f', -1, 64)
	}

	return retry.DoWithResult(ctx, func() (*models.Order, error) {
		body, err := b.doRequest(ctx, http.MethodPost, "/v1/trading/order", nil, payload, ratelimit.CategoryTrading)
		if err != nil {
			return nil, err
		}

		var raw bit2meOrder
		if err := bit2meJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode create order response: %w", err)
		}
		return raw.toModel()
	}, b.writeRetry)
}

func (b *Bit2Me) CancelOrderByID(ctx context.Context, id string) error {
	return retry.Do(ctx, func() error {
		_, err := b.doRequest(ctx, http.MethodDelete, "/v1/trading/order/"+id, nil, nil, ratelimit.CategoryTrading)
		return err
	}, b.writeRetry)
}

// ============================================================
// История сделок
// ============================================================

type bit2meTrade struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	FeeAmount string `json:"feeAmount"`
}

// GetTrades возвращает филлы от новых к старым (порядок биржи)
func (b *Bit2Me) GetTrades(ctx context.Context, side, symbol string) ([]*models.Trade, error) {
	query := url.Values{}
	query.Set("side", side)
	query.Set("symbol", symbol)
	query.Set("direction", "desc")

	return retry.DoWithResult(ctx, func() ([]*models.Trade, error) {
		body, err := b.doRequest(ctx, http.MethodGet, "/v1/trading/trade", query, nil, ratelimit.CategoryAccount)
		if err != nil {
			return nil, err
		}

		var raw struct {
			Data []bit2meTrade `json:"data"`
		}
		if err := bit2meJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode trades response: %w", err)
		}

		trades := make([]*models.Trade, 0, len(raw.Data))
		for _, item := range raw.Data {
			price, err := strconv.ParseFloat(item.Price, 64)
			if err != nil {
				return nil, fmt.Errorf("parse trade price %q: %w", item.Price, err)
			}
			amount, err := strconv.ParseFloat(item.Amount, 64)
			if err != nil {
				return nil, fmt.Errorf("parse trade amount %q: %w", item.Amount, err)
			}
			var fee float64
			if item.FeeAmount != "" {
				fee, err = strconv.ParseFloat(item.FeeAmount, 64)
				if err != nil {
					return nil, fmt.Errorf("parse trade fee %q: %w", item.FeeAmount, err)
				}
			}

			trades = append(trades, &models.Trade{
				ID:        item.ID,
				OrderID:   item.OrderID,
				Symbol:    item.Symbol,
				Side:      item.Side,
				Price:     price,
				Amount:    amount,
				FeeAmount: fee,
			})
		}
		return trades, nil
	}, b.readRetry)
}

// ============================================================
// Рыночные данные
// ============================================================

type bit2meTicker struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Close     float64 `json:"close"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
}

func (t *bit2meTicker) toModel() *models.SymbolTickers {
	return &models.SymbolTickers{
		Symbol:    t.Symbol,
		Timestamp: time.UnixMilli(t.Timestamp).UTC(),
		Close:     t.Close,
		Bid:       t.Bid,
		Ask:       t.Ask,
	}
}

func (b *Bit2Me) GetSingleTickersBySymbol(ctx context.Context, symbol string) (*models.SymbolTickers, error) {
	tickers, err := b.GetTickersBySymbols(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, newHTTPError(bit2meName, http.StatusNotFound, "", "no tickers for symbol "+symbol)
	}
	return tickers[0], nil
}

func (b *Bit2Me) GetTickersBySymbols(ctx context.Context, symbols []string) ([]*models.SymbolTickers, error) {
	query := url.Values{}
	for _, s := range symbols {
		query.Add("symbol", s)
	}

	return retry.DoWithResult(ctx, func() ([]*models.SymbolTickers, error) {
		body, err := b.doRequest(ctx, http.MethodGet, "/v2/trading/tickers", query, nil, ratelimit.CategoryMarketData)
		if err != nil {
			return nil, err
		}

		var raw []bit2meTicker
		if err := bit2meJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode tickers response: %w", err)
		}

		tickers := make([]*models.SymbolTickers, 0, len(raw))
		for i := range raw {
			m := raw[i].toModel()
			if err := m.Validate(); err != nil {
				return nil, fmt.Errorf("tickers for %s: %w", m.Symbol, err)
			}
			tickers = append(tickers, m)
		}
		return tickers, nil
	}, b.readRetry)
}

// FetchOHLCV возвращает свечи от старых к новым.
// Bit2Me отдает массивы [timestamp, open, high, low, close, volume].
func (b *Bit2Me) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = DefaultOHLCVLimit
	}

	interval, err := bit2meInterval(timeframe)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))

	return retry.DoWithResult(ctx, func() ([]models.Candle, error) {
		body, err := b.doRequest(ctx, http.MethodGet, "/v1/trading/candle", query, nil, ratelimit.CategoryMarketData)
		if err != nil {
			return nil, err
		}

		var raw [][]float64
		if err := bit2meJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode candles response: %w", err)
		}

		candles := make([]models.Candle, 0, len(raw))
		for _, row := range raw {
			if len(row) < 6 {
				return nil, fmt.Errorf("malformed candle row: %v", row)
			}
			candles = append(candles, models.Candle{
				Timestamp: time.UnixMilli(int64(row[0])).UTC(),
				Open:      row[1],
				High:      row[2],
				Low:       row[3],
				Close:     row[4],
				Volume:    row[5],
			})
		}
		return candles, nil
	}, b.readRetry)
}

// bit2meInterval переводит таймфрейм в параметр interval (минуты)
func bit2meInterval(timeframe string) (string, error) {
	switch timeframe {
	case "1m":
		return "1", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "30m":
		return "30", nil
	case "1h":
		return "60", nil
	case "4h":
		return "240", nil
	case "1d":
		return "1440", nil
	default:
		return "", fmt.Errorf("unsupported timeframe for bit2me: %q", timeframe)
	}
}

type bit2meMarketConfig struct {
	Symbol          string `json:"symbol"`
	PricePrecision  int    `json:"pricePrecision"`
	AmountPrecision int    `json:"amountPrecision"`
	MinAmount       string `json:"minAmount"`
	MaxAmount       string `json:"maxAmount"`
	MinPrice        string `json:"minPrice"`
	MaxPrice        string `json:"maxPrice"`
}

func (b *Bit2Me) GetTradingMarketConfigBySymbol(ctx context.Context, symbol string) (*models.SymbolMarketConfig, error) {
	if cached, ok := b.marketConfigs.Load(symbol); ok {
		return cached.(*models.SymbolMarketConfig), nil
	}

	query := url.Values{}
	query.Set("symbol", symbol)

	cfg, err := retry.DoWithResult(ctx, func() (*models.SymbolMarketConfig, error) {
		body, err := b.doRequest(ctx, http.MethodGet, "/v1/trading/market-config", query, nil, ratelimit.CategoryMarketData)
		if err != nil {
			return nil, err
		}

		var raw []bit2meMarketConfig
		if err := bit2meJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode market config response: %w", err)
		}
		if len(raw) == 0 {
			return nil, newHTTPError(bit2meName, http.StatusNotFound, "", "no market config for symbol "+symbol)
		}

		item := raw[0]
		minAmount, _ := strconv.ParseFloat(item.MinAmount, 64)
		maxAmount, _ := strconv.ParseFloat(item.MaxAmount, 64)
		minPrice, _ := strconv.ParseFloat(item.MinPrice, 64)
		maxPrice, _ := strconv.ParseFloat(item.MaxPrice, 64)

		return &models.SymbolMarketConfig{
			Symbol:          item.Symbol,
			PricePrecision:  item.PricePrecision,
			AmountPrecision: item.AmountPrecision,
			MinAmount:       minAmount,
			MaxAmount:       maxAmount,
			MinPrice:        minPrice,
			MaxPrice:        maxPrice,
		}, nil
	}, b.readRetry)
	if err != nil {
		return nil, err
	}

	b.marketConfigs.Store(symbol, cfg)
	return cfg, nil
}

func (b *Bit2Me) Close() error {
	closeIdleConnections(b.httpClient)
	return nil
}
