package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"stopguard/internal/models"
	"stopguard/pkg/ratelimit"
	"stopguard/pkg/retry"
	"stopguard/pkg/utils"
)

const (
	mexcName    = "mexc"
	mexcBaseURL = "https://api.mexc.com"
)

var mexcJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// MEXC реализует интерфейс Exchange для MEXC Spot API v3.
//
// MEXC использует binance-стиль: символы без слеша (BTCUSDT),
// подпись HMAC-SHA256 от query string, ключ в заголовке X-MEXC-APIKEY.
// Обратное отображение BTCUSDT -> BTC/USDT строится из exchangeInfo.
type MEXC struct {
	apiKey    string
	secretKey string

	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter

	// Кэш exchangeInfo: точности и словарь символов
	infoMu        sync.Mutex
	symbolInfo    map[string]*mexcSymbolInfo // ключ - символ без слеша
	symbolBySlash map[string]string          // BTC/USDT -> BTCUSDT

	readRetry  retry.Config
	writeRetry retry.Config
}

type mexcSymbolInfo struct {
	Raw             string // BTCUSDT
	Slashed         string // BTC/USDT
	PricePrecision  int
	AmountPrecision int
	MinAmount       float64
	MaxAmount       float64
}

// NewMEXC создает экземпляр шлюза MEXC
func NewMEXC(apiKey, secretKey string) *MEXC {
	limiter := ratelimit.NewMultiLimiter()
	limiter.Add(ratelimit.CategoryMarketData, 15, 30)
	limiter.Add(ratelimit.CategoryAccount, 10, 20)
	limiter.Add(ratelimit.CategoryTrading, 5, 10)

	readRetry := retry.DefaultConfig()
	readRetry.RetryIf = retry.IsRetryable
	writeRetry := retry.OrderConfig()
	writeRetry.RetryIf = retry.IsRetryable

	return &MEXC{
		apiKey:     apiKey,
		secretKey:  secretKey,
		httpClient: NewHTTPClient(DefaultHTTPClientConfig()),
		limiter:    limiter,
		readRetry:  readRetry,
		writeRetry: writeRetry,
	}
}

func (m *MEXC) GetName() string {
	return mexcName
}

// sign подписывает query string запроса
func (m *MEXC) sign(query string) string {
	h := hmac.New(sha256.New, []byte(m.secretKey))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет один HTTP запрос к MEXC.
// Для signed-запросов добавляет timestamp и signature в query.
func (m *MEXC) doRequest(ctx context.Context, method, endpoint string, query url.Values, signed bool, category string) ([]byte, error) {
	if err := m.limiter.Wait(ctx, category); err != nil {
		return nil, err
	}

	if query == nil {
		query = url.Values{}
	}
	if signed {
		query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		query.Set("recvWindow", "5000")
		query.Set("signature", m.sign(query.Encode()))
	}

	fullURL := mexcBaseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MEXC-APIKEY", m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, newNetworkError(mexcName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetworkError(mexcName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		_ = mexcJSON.Unmarshal(body, &errResp)
		return nil, newHTTPError(mexcName, resp.StatusCode, strconv.Itoa(errResp.Code), errResp.Msg)
	}

	return body, nil
}

// ============================================================
// Словарь символов (exchangeInfo)
// ============================================================

// loadSymbolInfo лениво загружает exchangeInfo и строит оба словаря.
// Повторные вызовы используют кэш - состав рынков статичен.
func (m *MEXC) loadSymbolInfo(ctx context.Context) error {
	m.infoMu.Lock()
	defer m.infoMu.Unlock()
	if m.symbolInfo != nil {
		return nil
	}

	info, err := retry.DoWithResult(ctx, func() (map[string]*mexcSymbolInfo, error) {
		body, err := m.doRequest(ctx, http.MethodGet, "/api/v3/exchangeInfo", nil, false, ratelimit.CategoryMarketData)
		if err != nil {
			return nil, err
		}

		var raw struct {
			Symbols []struct {
				Symbol             string `json:"symbol"`
				BaseAsset          string `json:"baseAsset"`
				QuoteAsset         string `json:"quoteAsset"`
				QuotePrecision     int    `json:"quotePrecision"`
				BaseAssetPrecision int    `json:"baseAssetPrecision"`
				BaseSizePrecision  string `json:"baseSizePrecision"`
				MaxQuoteAmount     string `json:"maxQuoteAmount"`
			} `json:"symbols"`
		}
		if err := mexcJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode exchangeInfo response: %w", err)
		}

		result := make(map[string]*mexcSymbolInfo, len(raw.Symbols))
		for _, s := range raw.Symbols {
			minAmount, _ := strconv.ParseFloat(s.BaseSizePrecision, 64)
			maxAmount, _ := strconv.ParseFloat(s.MaxQuoteAmount, 64)
			result[s.Symbol] = &mexcSymbolInfo{
				Raw:             s.Symbol,
				Slashed:         s.BaseAsset + "/" + s.QuoteAsset,
				PricePrecision:  s.QuotePrecision,
				AmountPrecision: s.BaseAssetPrecision,
				MinAmount:       minAmount,
				MaxAmount:       maxAmount,
			}
		}
		return result, nil
	}, m.readRetry)
	if err != nil {
		return err
	}

	m.symbolInfo = info
	m.symbolBySlash = make(map[string]string, len(info))
	for raw, s := range info {
		m.symbolBySlash[s.Slashed] = raw
	}
	return nil
}

// rawSymbol переводит BTC/USDT в BTCUSDT
func (m *MEXC) rawSymbol(ctx context.Context, slashed string) (string, error) {
	if err := m.loadSymbolInfo(ctx); err != nil {
		return "", err
	}
	m.infoMu.Lock()
	defer m.infoMu.Unlock()
	raw, ok := m.symbolBySlash[slashed]
	if !ok {
		// Fallback для символов, отсутствующих в словаре
		return strings.ReplaceAll(slashed, "/", ""), nil
	}
	return raw, nil
}

// slashedSymbol переводит BTCUSDT обратно в BTC/USDT
func (m *MEXC) slashedSymbol(raw string) string {
	m.infoMu.Lock()
	defer m.infoMu.Unlock()
	if info, ok := m.symbolInfo[raw]; ok {
		return info.Slashed
	}
	return raw
}

// ============================================================
// Ордера
// ============================================================

type mexcOrder struct {
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	OrigQty   string `json:"origQty"`
	Price     string `json:"price"`
	StopPrice string `json:"stopPrice"`
	Time      int64  `json:"time"`
}

// mexcOrderStatus переводит статусы MEXC в канонические
func mexcOrderStatus(status string) string {
	switch status {
	case "NEW":
		return models.OrderStatusOpen
	case "FILLED":
		return models.OrderStatusFilled
	case "PARTIALLY_FILLED":
		return models.OrderStatusPartiallyFilled
	case "CANCELED":
		return models.OrderStatusCancelled
	case "PARTIALLY_CANCELED":
		return models.OrderStatusPartiallyCancelled
	default:
		return strings.ToLower(status)
	}
}

// mexcOrderType переводит типы ордеров MEXC в канонические
func mexcOrderType(orderType string) string {
	switch orderType {
	case "LIMIT", "LIMIT_MAKER":
		return models.OrderTypeLimit
	case "MARKET":
		return models.OrderTypeMarket
	case "STOP_LIMIT":
		return models.OrderTypeStopLimit
	default:
		return strings.ToLower(orderType)
	}
}

func (o *mexcOrder) toModel(slashedSymbol string) (*models.Order, error) {
	amount, err := strconv.ParseFloat(o.OrigQty, 64)
	if err != nil {
		return nil, fmt.Errorf("parse order qty %q: %w", o.OrigQty, err)
	}

	var price float64
	if o.Price != "" {
		price, err = strconv.ParseFloat(o.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("parse order price %q: %w", o.Price, err)
		}
	}

	order := &models.Order{
		ID:        o.OrderID,
		Symbol:    slashedSymbol,
		Side:      strings.ToLower(o.Side),
		OrderType: mexcOrderType(o.Type),
		Status:    mexcOrderStatus(o.Status),
		Amount:    amount,
		Price:     price,
		CreatedAt: time.UnixMilli(o.Time).UTC(),
	}

	if o.StopPrice != "" && o.StopPrice != "0" {
		stopPrice, err := strconv.ParseFloat(o.StopPrice, 64)
		if err != nil {
			return nil, fmt.Errorf("parse order stop price %q: %w", o.StopPrice, err)
		}
		if stopPrice > 0 {
			order.StopPrice = &stopPrice
		}
	}

	return order, nil
}

func (m *MEXC) getPendingOrders(ctx context.Context, side, orderType string) ([]*models.Order, error) {
	if err := m.loadSymbolInfo(ctx); err != nil {
		return nil, err
	}

	return retry.DoWithResult(ctx, func() ([]*models.Order, error) {
		body, err := m.doRequest(ctx, http.MethodGet, "/api/v3/openOrders", nil, true, ratelimit.CategoryAccount)
		if err != nil {
			return nil, err
		}

		var raw []mexcOrder
		if err := mexcJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode open orders response: %w", err)
		}

		orders := make([]*models.Order, 0, len(raw))
		for i := range raw {
			order, err := raw[i].toModel(m.slashedSymbol(raw[i].Symbol))
			if err != nil {
				return nil, err
			}
			if order.Side != side {
				continue
			}
			if orderType != "" && order.OrderType != orderType {
				continue
			}
			orders = append(orders, order)
		}
		return orders, nil
	}, m.readRetry)
}

func (m *MEXC) GetPendingSellOrders(ctx context.Context, orderType string) ([]*models.Order, error) {
	return m.getPendingOrders(ctx, models.SideSell, orderType)
}

func (m *MEXC) GetPendingBuyOrders(ctx context.Context, orderType string) ([]*models.Order, error) {
	return m.getPendingOrders(ctx, models.SideBuy, orderType)
}

func (m *MEXC) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := utils.ValidateSymbolPair(order.Symbol); err != nil {
		return nil, err
	}
	if err := utils.ValidatePositive("amount", order.Amount); err != nil {
		return nil, err
	}

	raw, err := m.rawSymbol(ctx, order.Symbol)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("symbol", raw)
	query.Set("side", strings.ToUpper(order.Side))
	query.Set("quantity", strconv.FormatFloat(order.Amount, 'f', -1, 64))

	switch order.OrderType {
	case models.OrderTypeMarket:
		query.Set("type", "MARKET")
	case models.OrderTypeStopLimit:
		query.Set("type", "STOP_LIMIT")
		query.Set("price", strconv.FormatFloat(order.Price, 'f', -1, 64))
		if order.StopPrice != nil {
			query.Set("stopPrice", strconv.FormatFloat(*order.StopPrice, 'f', -1, 64))
		}
	default:
		query.Set("type", "LIMIT")
		query.Set("price", strconv.FormatFloat(order.Price, 'f', -1, 64))
	}

	return retry.DoWithResult(ctx, func() (*models.Order, error) {
		body, err := m.doRequest(ctx, http.MethodPost, "/api/v3/order", query, true, ratelimit.CategoryTrading)
		if err != nil {
			return nil, err
		}

		var resp mexcOrder
		if err := mexcJSON.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode create order response: %w", err)
		}
		return resp.toModel(order.Symbol)
	}, m.writeRetry)
}

// CancelOrderByID отменяет ордер. MEXC требует символ при отмене,
// поэтому сначала ищем ордер среди открытых.
func (m *MEXC) CancelOrderByID(ctx context.Context, id string) error {
	orders, err := retry.DoWithResult(ctx, func() ([]*models.Order, error) {
		body, err := m.doRequest(ctx, http.MethodGet, "/api/v3/openOrders", nil, true, ratelimit.CategoryAccount)
		if err != nil {
			return nil, err
		}
		var raw []mexcOrder
		if err := mexcJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode open orders response: %w", err)
		}
		result := make([]*models.Order, 0, len(raw))
		for i := range raw {
			result = append(result, &models.Order{ID: raw[i].OrderID, Symbol: raw[i].Symbol})
		}
		return result, nil
	}, m.readRetry)
	if err != nil {
		return err
	}

	var rawSymbol string
	for _, o := range orders {
		if o.ID == id {
			rawSymbol = o.Symbol
			break
		}
	}
	if rawSymbol == "" {
		return newHTTPError(mexcName, http.StatusNotFound, "", "order "+id+" not found among open orders")
	}

	query := url.Values{}
	query.Set("symbol", rawSymbol)
	query.Set("orderId", id)

	return retry.Do(ctx, func() error {
		_, err := m.doRequest(ctx, http.MethodDelete, "/api/v3/order", query, true, ratelimit.CategoryTrading)
		return err
	}, m.writeRetry)
}

// ============================================================
// История сделок
// ============================================================

// GetTrades возвращает филлы от новых к старым.
// MEXC отдает от старых к новым, поэтому сортируем по убыванию времени.
func (m *MEXC) GetTrades(ctx context.Context, side, symbol string) ([]*models.Trade, error) {
	raw, err := m.rawSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("symbol", raw)

	return retry.DoWithResult(ctx, func() ([]*models.Trade, error) {
		body, err := m.doRequest(ctx, http.MethodGet, "/api/v3/myTrades", query, true, ratelimit.CategoryAccount)
		if err != nil {
			return nil, err
		}

		var items []struct {
			ID         string `json:"id"`
			OrderID    string `json:"orderId"`
			Price      string `json:"price"`
			Qty        string `json:"qty"`
			Commission string `json:"commission"`
			IsBuyer    bool   `json:"isBuyer"`
			Time       int64  `json:"time"`
		}
		if err := mexcJSON.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode trades response: %w", err)
		}

		sort.Slice(items, func(i, j int) bool { return items[i].Time > items[j].Time })

		trades := make([]*models.Trade, 0, len(items))
		for _, item := range items {
			tradeSide := models.SideSell
			if item.IsBuyer {
				tradeSide = models.SideBuy
			}
			if tradeSide != side {
				continue
			}

			price, err := strconv.ParseFloat(item.Price, 64)
			if err != nil {
				return nil, fmt.Errorf("parse trade price %q: %w", item.Price, err)
			}
			amount, err := strconv.ParseFloat(item.Qty, 64)
			if err != nil {
				return nil, fmt.Errorf("parse trade qty %q: %w", item.Qty, err)
			}
			fee, _ := strconv.ParseFloat(item.Commission, 64)

			trades = append(trades, &models.Trade{
				ID:        item.ID,
				OrderID:   item.OrderID,
				Symbol:    symbol,
				Side:      tradeSide,
				Price:     price,
				Amount:    amount,
				FeeAmount: fee,
			})
		}
		return trades, nil
	}, m.readRetry)
}

// ============================================================
// Рыночные данные
// ============================================================

type mexcTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	BidPrice  string `json:"bidPrice"`
	AskPrice  string `json:"askPrice"`
	CloseTime int64  `json:"closeTime"`
}

func (t *mexcTicker) toModel(slashedSymbol string) (*models.SymbolTickers, error) {
	last, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("parse ticker last price %q: %w", t.LastPrice, err)
	}
	bid, _ := strconv.ParseFloat(t.BidPrice, 64)
	ask, _ := strconv.ParseFloat(t.AskPrice, 64)

	return &models.SymbolTickers{
		Symbol:    slashedSymbol,
		Timestamp: time.UnixMilli(t.CloseTime).UTC(),
		Close:     last,
		Bid:       bid,
		Ask:       ask,
	}, nil
}

func (m *MEXC) GetSingleTickersBySymbol(ctx context.Context, symbol string) (*models.SymbolTickers, error) {
	raw, err := m.rawSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("symbol", raw)

	return retry.DoWithResult(ctx, func() (*models.SymbolTickers, error) {
		body, err := m.doRequest(ctx, http.MethodGet, "/api/v3/ticker/24hr", query, false, ratelimit.CategoryMarketData)
		if err != nil {
			return nil, err
		}

		var t mexcTicker
		if err := mexcJSON.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("decode ticker response: %w", err)
		}

		ticker, err := t.toModel(symbol)
		if err != nil {
			return nil, err
		}
		if err := ticker.Validate(); err != nil {
			return nil, fmt.Errorf("tickers for %s: %w", symbol, err)
		}
		return ticker, nil
	}, m.readRetry)
}

func (m *MEXC) GetTickersBySymbols(ctx context.Context, symbols []string) ([]*models.SymbolTickers, error) {
	if err := m.loadSymbolInfo(ctx); err != nil {
		return nil, err
	}

	wanted := make(map[string]string, len(symbols)) // raw -> slashed
	for _, s := range symbols {
		raw, err := m.rawSymbol(ctx, s)
		if err != nil {
			return nil, err
		}
		wanted[raw] = s
	}

	return retry.DoWithResult(ctx, func() ([]*models.SymbolTickers, error) {
		body, err := m.doRequest(ctx, http.MethodGet, "/api/v3/ticker/24hr", nil, false, ratelimit.CategoryMarketData)
		if err != nil {
			return nil, err
		}

		var raw []mexcTicker
		if err := mexcJSON.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode tickers response: %w", err)
		}

		tickers := make([]*models.SymbolTickers, 0, len(wanted))
		for i := range raw {
			slashed, ok := wanted[raw[i].Symbol]
			if !ok {
				continue
			}
			ticker, err := raw[i].toModel(slashed)
			if err != nil {
				return nil, err
			}
			if err := ticker.Validate(); err != nil {
				return nil, fmt.Errorf("tickers for %s: %w", slashed, err)
			}
			tickers = append(tickers, ticker)
		}
		return tickers, nil
	}, m.readRetry)
}

// FetchOHLCV возвращает свечи от старых к новым.
// MEXC отдает массивы [openTime, open, high, low, close, volume, closeTime, ...]
// с ценами-строками.
func (m *MEXC) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = DefaultOHLCVLimit
	}

	raw, err := m.rawSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	interval, err := mexcInterval(timeframe)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("symbol", raw)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))

	return retry.DoWithResult(ctx, func() ([]models.Candle, error) {
		body, err := m.doRequest(ctx, http.MethodGet, "/api/v3/klines", query, false, ratelimit.CategoryMarketData)
		if err != nil {
			return nil, err
		}

		var rows [][]interface{}
		if err := mexcJSON.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode klines response: %w", err)
		}

		candles := make([]models.Candle, 0, len(rows))
		for _, row := range rows {
			if len(row) < 6 {
				return nil, fmt.Errorf("malformed kline row: %v", row)
			}
			candle, err := mexcCandleFromRow(row)
			if err != nil {
				return nil, err
			}
			candles = append(candles, candle)
		}
		return candles, nil
	}, m.readRetry)
}

func mexcCandleFromRow(row []interface{}) (models.Candle, error) {
	openTime, ok := row[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("malformed kline timestamp: %v", row[0])
	}

	values := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		switch v := row[i].(type) {
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return models.Candle{}, fmt.Errorf("parse kline value %q: %w", v, err)
			}
			values[i-1] = parsed
		case float64:
			values[i-1] = v
		default:
			return models.Candle{}, fmt.Errorf("malformed kline value: %v", row[i])
		}
	}

	return models.Candle{
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// mexcInterval переводит таймфрейм в параметр interval
func mexcInterval(timeframe string) (string, error) {
	switch timeframe {
	case "1m", "5m", "15m", "30m":
		return timeframe, nil
	case "1h":
		return "60m", nil
	case "4h":
		return "4h", nil
	case "1d":
		return "1d", nil
	default:
		return "", fmt.Errorf("unsupported timeframe for mexc: %q", timeframe)
	}
}

func (m *MEXC) GetTradingMarketConfigBySymbol(ctx context.Context, symbol string) (*models.SymbolMarketConfig, error) {
	if err := m.loadSymbolInfo(ctx); err != nil {
		return nil, err
	}

	raw, err := m.rawSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	m.infoMu.Lock()
	info, ok := m.symbolInfo[raw]
	m.infoMu.Unlock()
	if !ok {
		return nil, newHTTPError(mexcName, http.StatusNotFound, "", "no market config for symbol "+symbol)
	}

	return &models.SymbolMarketConfig{
		Symbol:          symbol,
		PricePrecision:  info.PricePrecision,
		AmountPrecision: info.AmountPrecision,
		MinAmount:       info.MinAmount,
		MaxAmount:       info.MaxAmount,
	}, nil
}

func (m *MEXC) Close() error {
	closeIdleConnections(m.httpClient)
	return nil
}
