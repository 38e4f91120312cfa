package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"stopguard/internal/models"
)

// SignalsConfigStore - конфигурации сигналов и авто-выходов символов
type SignalsConfigStore interface {
	GetSignalsConfig(ctx context.Context, symbol string) (*models.BuySellSignalsConfigItem, error)
	GetAllSignalsConfigs(ctx context.Context) ([]*models.BuySellSignalsConfigItem, error)
	UpdateSignalsConfig(ctx context.Context, item *models.BuySellSignalsConfigItem) error
}

// SignalsConfigHandler управляет конфигурациями сигналов.
//
// Endpoints:
// - GET /api/v1/signals-config - все персистированные конфигурации
// - GET /api/v1/signals-config/{symbol} - конфигурация символа
//   (дефолтная, если записи нет)
// - PUT /api/v1/signals-config/{symbol} - сохранить конфигурацию
type SignalsConfigHandler struct {
	store SignalsConfigStore
}

// NewSignalsConfigHandler создает handler с внедрением зависимости
func NewSignalsConfigHandler(store SignalsConfigStore) *SignalsConfigHandler {
	return &SignalsConfigHandler{store: store}
}

// GetAll возвращает все персистированные конфигурации
func (h *SignalsConfigHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.GetAllSignalsConfigs(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get signals configs: "+err.Error())
		return
	}
	if items == nil {
		items = []*models.BuySellSignalsConfigItem{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// Get возвращает конфигурацию символа; при отсутствии записи - дефолтную
func (h *SignalsConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	item, err := h.store.GetSignalsConfig(r.Context(), symbol)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get signals config: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

// Update сохраняет конфигурацию символа.
// Символ берется из пути и перекрывает символ в теле.
func (h *SignalsConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var item models.BuySellSignalsConfigItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item.Symbol = symbol

	if err := h.store.UpdateSignalsConfig(r.Context(), &item); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, &item)
}
