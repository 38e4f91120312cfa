package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"stopguard/internal/models"
	"stopguard/internal/repository"
)

// StopLossStore - персональные stop-loss проценты символов
type StopLossStore interface {
	GetAllStopLossPercents(ctx context.Context) ([]*models.StopLossPercentItem, error)
	GetStopLossPercent(ctx context.Context, symbol string) (float64, error)
	SetStopLossPercent(ctx context.Context, symbol string, value float64) (*models.StopLossPercentItem, error)
	DeleteStopLossPercent(ctx context.Context, symbol string) error
	DefaultStopLossPercent() float64
}

// StopLossHandler управляет ручными stop-loss процентами.
//
// Endpoints:
// - GET /api/v1/stop-loss - все персистированные проценты + дефолт
// - GET /api/v1/stop-loss/{symbol} - эффективный процент символа
// - PUT /api/v1/stop-loss/{symbol} - установить процент
// - DELETE /api/v1/stop-loss/{symbol} - вернуть символ на дефолт
type StopLossHandler struct {
	store StopLossStore
}

// NewStopLossHandler создает handler с внедрением зависимости
func NewStopLossHandler(store StopLossStore) *StopLossHandler {
	return &StopLossHandler{store: store}
}

// GetAll возвращает все персональные проценты и процессный дефолт
func (h *StopLossHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.GetAllStopLossPercents(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get stop loss percents: "+err.Error())
		return
	}
	if items == nil {
		items = []*models.StopLossPercentItem{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"items":           items,
		"default_percent": h.store.DefaultStopLossPercent(),
	})
}

// Get возвращает эффективный процент символа (персональный или дефолт)
func (h *StopLossHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	value, err := h.store.GetStopLossPercent(r.Context(), symbol)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get stop loss percent: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"value":  value,
	})
}

// SetStopLossRequest - тело запроса установки процента
type SetStopLossRequest struct {
	Value float64 `json:"value"`
}

// Set устанавливает персональный процент символа.
// Значения вне [0.25, 20.0] отклоняются с 400.
func (h *StopLossHandler) Set(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var req SetStopLossRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.store.SetStopLossPercent(r.Context(), symbol, req.Value)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

// Delete удаляет персональный процент: символ возвращается на дефолт
func (h *StopLossHandler) Delete(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if err := h.store.DeleteStopLossPercent(r.Context(), symbol); err != nil {
		if errors.Is(err, repository.ErrStopLossNotFound) {
			respondWithError(w, http.StatusNotFound, "no stop loss percent for symbol "+symbol)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to delete stop loss percent: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
