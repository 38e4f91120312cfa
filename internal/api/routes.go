package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stopguard/internal/api/handlers"
	"stopguard/internal/api/middleware"
	"stopguard/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	// ConfigStore закрывает флаги, stop-loss проценты и конфигурации
	// сигналов (реализуется service.ConfigService)
	ConfigStore interface {
		handlers.FlagStore
		handlers.StopLossStore
		handlers.SignalsConfigStore
	}

	GuardMetrics  handlers.GuardMetricsProvider
	SignalHistory handlers.SignalHistory

	// WSHandler - endpoint real-time подписки дашборда; nil = выключен
	WSHandler http.Handler

	Logger *utils.Logger

	// APITokenHash - bcrypt-хеш bearer-токена; защищает /api/v1
	APITokenHash string

	// AllowedOrigins - разрешенные CORS origins дашборда
	AllowedOrigins []string
}

// SetupRoutes настраивает все HTTP маршруты приложения.
//
// Структура маршрутов:
//
// /api/v1/ (bearer auth)
//
//	├── /guard-metrics      GET - расчетная сводка открытых sell-ордеров
//	├── /flags              GET - глобальные флаги задач
//	├── /flags/{name}       PUT - установить флаг
//	├── /stop-loss          GET - stop-loss проценты
//	├── /stop-loss/{symbol} GET/PUT/DELETE - процент символа
//	├── /signals-config          GET - конфигурации сигналов
//	├── /signals-config/{symbol} GET/PUT - конфигурация символа
//	└── /signals            GET - история рыночных сигналов
//
// /ws/stream - WebSocket real-time обновлений (guard-метрики, сигналы)
// /metrics   - Prometheus метрики
// /health    - liveness probe
//
// Middleware порядок: Recovery -> Logging -> CORS, auth только на /api/v1.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BearerAuth(deps.APITokenHash))

	if deps.GuardMetrics != nil {
		guardHandler := handlers.NewGuardMetricsHandler(deps.GuardMetrics)
		api.HandleFunc("/guard-metrics", guardHandler.GetGuardMetrics).Methods("GET")
	}

	if deps.ConfigStore != nil {
		flagsHandler := handlers.NewFlagsHandler(deps.ConfigStore)
		api.HandleFunc("/flags", flagsHandler.GetFlags).Methods("GET")
		api.HandleFunc("/flags/{name}", flagsHandler.SetFlag).Methods("PUT")

		stopLossHandler := handlers.NewStopLossHandler(deps.ConfigStore)
		api.HandleFunc("/stop-loss", stopLossHandler.GetAll).Methods("GET")
		api.HandleFunc("/stop-loss/{symbol}", stopLossHandler.Get).Methods("GET")
		api.HandleFunc("/stop-loss/{symbol}", stopLossHandler.Set).Methods("PUT")
		api.HandleFunc("/stop-loss/{symbol}", stopLossHandler.Delete).Methods("DELETE")

		signalsConfigHandler := handlers.NewSignalsConfigHandler(deps.ConfigStore)
		api.HandleFunc("/signals-config", signalsConfigHandler.GetAll).Methods("GET")
		api.HandleFunc("/signals-config/{symbol}", signalsConfigHandler.Get).Methods("GET")
		api.HandleFunc("/signals-config/{symbol}", signalsConfigHandler.Update).Methods("PUT")
	}

	if deps.SignalHistory != nil {
		signalsHandler := handlers.NewSignalsHandler(deps.SignalHistory)
		api.HandleFunc("/signals", signalsHandler.GetSignals).Methods("GET")
	}

	if deps.WSHandler != nil {
		router.Handle("/ws/stream", deps.WSHandler)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
