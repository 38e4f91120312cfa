package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики guard-ядра
// ============================================================
//
// Использование:
// - Grafana дашборды (проходы, принудительные выходы, ошибки)
// - Alertmanager: алерт на рост stopguard_core_job_errors_total

// GuardPasses - завершенные тики по задачам
var GuardPasses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stopguard",
		Subsystem: "core",
		Name:      "guard_passes_total",
		Help:      "Completed scheduler ticks per job",
	},
	[]string{"job"},
)

// TicksSkipped - тики, пропущенные из-за незавершенного предыдущего
var TicksSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stopguard",
		Subsystem: "core",
		Name:      "ticks_skipped_total",
		Help:      "Scheduler ticks skipped because previous run was still in progress",
	},
	[]string{"job"},
)

// JobErrors - ошибки задач (и per-order, и job-level)
var JobErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stopguard",
		Subsystem: "core",
		Name:      "job_errors_total",
		Help:      "Errors raised during scheduled job runs",
	},
	[]string{"job"},
)

// PassDuration - длительность тика задачи
var PassDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "stopguard",
		Subsystem: "core",
		Name:      "pass_duration_seconds",
		Help:      "Duration of one scheduled job tick",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"job"},
)

// ForcedExits - принудительные market-выходы по причинам
var ForcedExits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stopguard",
		Subsystem: "trading",
		Name:      "forced_exits_total",
		Help:      "Forced market exits by reason",
	},
	[]string{"reason"},
)

// TrailingReplacements - замены stop-limit ордеров с поднятым стопом
var TrailingReplacements = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stopguard",
		Subsystem: "trading",
		Name:      "trailing_replacements_total",
		Help:      "Stop-limit orders replaced with a raised stop price",
	},
	[]string{"symbol"},
)

// SignalsDetected - обнаруженные рыночные сигналы
var SignalsDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "stopguard",
		Subsystem: "signals",
		Name:      "detected_total",
		Help:      "Detected market signals by type and timeframe",
	},
	[]string{"type", "timeframe"},
)

// CorrelationFallbacks - корреляции, пересчитанные с чистого накопителя,
// потому что buy-филлы уже были разобраны предыдущими ордерами прохода
var CorrelationFallbacks = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "stopguard",
		Subsystem: "trading",
		Name:      "correlation_fallbacks_total",
		Help:      "Sell order correlations recomputed from a fresh attribution state",
	},
)

// OpenSellOrders - открытые limit sell-ордера на последнем проходе
var OpenSellOrders = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "stopguard",
		Subsystem: "trading",
		Name:      "open_sell_orders",
		Help:      "Open limit sell orders observed on the last guard pass",
	},
)
