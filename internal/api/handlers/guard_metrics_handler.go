package handlers

import (
	"context"
	"net/http"

	"stopguard/internal/models"
)

// GuardMetricsProvider - read-model guard-метрик открытых sell-ордеров.
// Реализуется движком бота; расчет по требованию, без торговых действий.
type GuardMetricsProvider interface {
	GuardMetrics(ctx context.Context) ([]*models.LimitSellOrderGuardMetrics, error)
}

// GuardMetricsHandler отдает расчетную сводку по каждому открытому
// sell-ордеру: средняя цена покупки, break-even, safeguard-цены,
// предлагаемый stop-loss процент.
//
// GET /api/v1/guard-metrics
type GuardMetricsHandler struct {
	provider GuardMetricsProvider
}

// NewGuardMetricsHandler создает handler с внедрением зависимости
func NewGuardMetricsHandler(provider GuardMetricsProvider) *GuardMetricsHandler {
	return &GuardMetricsHandler{provider: provider}
}

// GuardMetricsResponse - ответ списка guard-метрик
type GuardMetricsResponse struct {
	Metrics []*models.LimitSellOrderGuardMetrics `json:"metrics"`
	Total   int                                  `json:"total"`
}

// GetGuardMetrics возвращает метрики всех открытых sell-ордеров.
//
// Расчет выполняется на месте по актуальным данным биржи, поэтому
// запрос может занимать заметное время при большом числе ордеров.
func (h *GuardMetricsHandler) GetGuardMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.provider.GuardMetrics(r.Context())
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "failed to compute guard metrics: "+err.Error())
		return
	}
	if metrics == nil {
		metrics = []*models.LimitSellOrderGuardMetrics{}
	}
	respondWithJSON(w, http.StatusOK, GuardMetricsResponse{Metrics: metrics, Total: len(metrics)})
}
