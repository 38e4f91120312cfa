package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"stopguard/internal/models"
)

func testRouter(store *mockConfigStore, guard *mockGuardMetricsProvider, history *mockSignalHistory) *mux.Router {
	router := mux.NewRouter()

	if guard != nil {
		h := NewGuardMetricsHandler(guard)
		router.HandleFunc("/guard-metrics", h.GetGuardMetrics).Methods("GET")
	}
	if store != nil {
		flags := NewFlagsHandler(store)
		router.HandleFunc("/flags", flags.GetFlags).Methods("GET")
		router.HandleFunc("/flags/{name}", flags.SetFlag).Methods("PUT")

		stopLoss := NewStopLossHandler(store)
		router.HandleFunc("/stop-loss", stopLoss.GetAll).Methods("GET")
		router.HandleFunc("/stop-loss/{symbol}", stopLoss.Get).Methods("GET")
		router.HandleFunc("/stop-loss/{symbol}", stopLoss.Set).Methods("PUT")
		router.HandleFunc("/stop-loss/{symbol}", stopLoss.Delete).Methods("DELETE")

		signalsConfig := NewSignalsConfigHandler(store)
		router.HandleFunc("/signals-config/{symbol}", signalsConfig.Get).Methods("GET")
		router.HandleFunc("/signals-config/{symbol}", signalsConfig.Update).Methods("PUT")
	}
	if history != nil {
		signals := NewSignalsHandler(history)
		router.HandleFunc("/signals", signals.GetSignals).Methods("GET")
	}
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetFlags(t *testing.T) {
	store := newMockConfigStore()
	store.flags[models.FlagLimitSellGuard] = false
	router := testRouter(store, nil, nil)

	rec := doRequest(t, router, "GET", "/flags", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d", rec.Code)
	}

	var resp struct {
		Flags []*models.GlobalFlag `json:"flags"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Flags) != len(models.KnownFlags) {
		t.Errorf("флагов = %d, ожидалось %d", len(resp.Flags), len(models.KnownFlags))
	}
	for _, flag := range resp.Flags {
		if flag.Name == models.FlagLimitSellGuard && flag.Value {
			t.Error("выключенный флаг вернулся включенным")
		}
	}
}

func TestSetFlag(t *testing.T) {
	store := newMockConfigStore()
	router := testRouter(store, nil, nil)

	rec := doRequest(t, router, "PUT", "/flags/trailing_stop_loss", SetFlagRequest{Value: false})
	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if store.flags[models.FlagTrailingStopLoss] {
		t.Error("флаг не был выключен")
	}
}

func TestSetUnknownFlag(t *testing.T) {
	router := testRouter(newMockConfigStore(), nil, nil)

	rec := doRequest(t, router, "PUT", "/flags/NO_SUCH", SetFlagRequest{Value: true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("код = %d, ожидался 400", rec.Code)
	}
}

func TestStopLossRoundTrip(t *testing.T) {
	store := newMockConfigStore()
	router := testRouter(store, nil, nil)

	rec := doRequest(t, router, "PUT", "/stop-loss/eth", SetStopLossRequest{Value: 3.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT код = %d, тело: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, "GET", "/stop-loss/ETH", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET код = %d", rec.Code)
	}
	var got struct {
		Symbol string  `json:"symbol"`
		Value  float64 `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Value != 3.5 {
		t.Errorf("value = %v", got.Value)
	}

	rec = doRequest(t, router, "DELETE", "/stop-loss/ETH", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE код = %d", rec.Code)
	}
	rec = doRequest(t, router, "DELETE", "/stop-loss/ETH", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("повторный DELETE код = %d, ожидался 404", rec.Code)
	}
}

func TestSetStopLossOutOfRange(t *testing.T) {
	router := testRouter(newMockConfigStore(), nil, nil)

	rec := doRequest(t, router, "PUT", "/stop-loss/ETH", SetStopLossRequest{Value: 25.0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("код = %d, ожидался 400", rec.Code)
	}
}

func TestGetStopLossDefault(t *testing.T) {
	router := testRouter(newMockConfigStore(), nil, nil)

	rec := doRequest(t, router, "GET", "/stop-loss/XRP", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d", rec.Code)
	}
	var got struct {
		Value float64 `json:"value"`
	}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Value != 2.25 {
		t.Errorf("дефолтный процент = %v", got.Value)
	}
}

func TestSignalsConfigUpdate(t *testing.T) {
	store := newMockConfigStore()
	router := testRouter(store, nil, nil)

	item := models.NewBuySellSignalsConfigItem("ignored")
	item.EMAShortPeriod = 9
	item.EMAMidPeriod = 21
	item.EMALongPeriod = 100
	item.StopLossATRMultiplier = 1.5
	item.TakeProfitATRMultiplier = 3.0

	rec := doRequest(t, router, "PUT", "/signals-config/eth", item)
	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d, тело: %s", rec.Code, rec.Body.String())
	}

	// Символ берется из пути, а не из тела
	if _, ok := store.signalsConfig["ETH"]; !ok {
		t.Errorf("конфигурация не сохранена под символом из пути: %v", store.signalsConfig)
	}
}

func TestSignalsConfigGetDefaults(t *testing.T) {
	router := testRouter(newMockConfigStore(), nil, nil)

	rec := doRequest(t, router, "GET", "/signals-config/SOL", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d", rec.Code)
	}
	var item models.BuySellSignalsConfigItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Symbol != "SOL" || item.EMALongPeriod != 200 {
		t.Errorf("item = %+v", item)
	}
}

func TestGetGuardMetrics(t *testing.T) {
	provider := &mockGuardMetricsProvider{
		metrics: []*models.LimitSellOrderGuardMetrics{
			{
				SellOrder:    &models.Order{ID: "s1", Symbol: "ETH/USDT"},
				AvgBuyPrice:  1000,
				CurrentPrice: 1010,
			},
		},
	}
	router := testRouter(nil, provider, nil)

	rec := doRequest(t, router, "GET", "/guard-metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d", rec.Code)
	}
	var resp GuardMetricsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Metrics[0].SellOrder.ID != "s1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetGuardMetricsExchangeError(t *testing.T) {
	provider := &mockGuardMetricsProvider{err: errors.New("exchange unavailable")}
	router := testRouter(nil, provider, nil)

	rec := doRequest(t, router, "GET", "/guard-metrics", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("код = %d, ожидался 502", rec.Code)
	}
}

func TestGetGuardMetricsEmpty(t *testing.T) {
	router := testRouter(nil, &mockGuardMetricsProvider{}, nil)

	rec := doRequest(t, router, "GET", "/guard-metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d", rec.Code)
	}
	var resp GuardMetricsResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Metrics == nil {
		t.Error("пустой список должен сериализоваться как [], не null")
	}
}

func TestGetSignalsQueryParams(t *testing.T) {
	history := &mockSignalHistory{
		signals: []*models.MarketSignal{{Symbol: "ETH", SignalType: models.SignalTypeBuy}},
	}
	router := testRouter(nil, nil, history)

	rec := doRequest(t, router, "GET", "/signals?symbol=eth&limit=9999", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("код = %d", rec.Code)
	}
	if history.lastSymbol != "ETH" {
		t.Errorf("символ = %q, ожидалась нормализация к ETH", history.lastSymbol)
	}
	if history.lastLimit != 500 {
		t.Errorf("лимит = %d, ожидалось ограничение 500", history.lastLimit)
	}
}
