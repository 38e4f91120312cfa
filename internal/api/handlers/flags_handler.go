package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"stopguard/internal/models"
)

// FlagStore - чтение и изменение глобальных флагов задач
type FlagStore interface {
	GetAllFlags(ctx context.Context) ([]*models.GlobalFlag, error)
	SetFlag(ctx context.Context, name string, value bool) error
}

// FlagsHandler управляет глобальными флагами guard-задач.
//
// Endpoints:
// - GET /api/v1/flags - все флаги с актуальными значениями
// - PUT /api/v1/flags/{name} - установить значение флага
//
// Выключение флага приостанавливает соответствующую задачу со
// следующего тика; уже идущий проход не прерывается.
type FlagsHandler struct {
	flags FlagStore
}

// NewFlagsHandler создает handler с внедрением зависимости
func NewFlagsHandler(flags FlagStore) *FlagsHandler {
	return &FlagsHandler{flags: flags}
}

// GetFlags возвращает все известные флаги
func (h *FlagsHandler) GetFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.flags.GetAllFlags(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get flags: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"flags": flags})
}

// SetFlagRequest - тело запроса установки флага
type SetFlagRequest struct {
	Value bool `json:"value"`
}

// SetFlag устанавливает значение флага.
// Имена флагов фиксированы; неизвестное имя - 400.
func (h *FlagsHandler) SetFlag(w http.ResponseWriter, r *http.Request) {
	name := strings.ToUpper(mux.Vars(r)["name"])

	var req SetFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.flags.SetFlag(r.Context(), name, req.Value); err != nil {
		if strings.Contains(err.Error(), "unknown flag") {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to set flag: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"name":  name,
		"value": req.Value,
	})
}
