package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"stopguard/internal/models"
)

// SignalHistory - чтение истории рыночных сигналов
type SignalHistory interface {
	List(ctx context.Context, symbol string, limit int) ([]*models.MarketSignal, error)
}

// SignalsHandler отдает историю обнаруженных рыночных сигналов.
//
// GET /api/v1/signals?symbol=ETH&limit=50
type SignalsHandler struct {
	history SignalHistory
}

// NewSignalsHandler создает handler с внедрением зависимости
func NewSignalsHandler(history SignalHistory) *SignalsHandler {
	return &SignalsHandler{history: history}
}

// GetSignals возвращает сигналы, новые сверху.
//
// Query параметры:
// - symbol: фильтр по базовой валюте (опционально)
// - limit: количество записей (по умолчанию 100, максимум 500)
func (h *SignalsHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 500 {
		limit = 500
	}

	signals, err := h.history.List(r.Context(), symbol, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get signals: "+err.Error())
		return
	}
	if signals == nil {
		signals = []*models.MarketSignal{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"signals": signals,
		"total":   len(signals),
	})
}
