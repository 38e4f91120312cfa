package bot

import (
	"context"
	"time"

	"stopguard/internal/models"
)

// Интерфейсы коллабораторов объявлены на стороне потребителя:
// ядру нужны только эти операции, конкретные реализации живут
// в service и repository.

// ConfigProvider - доступ к настройкам риска и сигналов
type ConfigProvider interface {
	// GetSignalsConfig возвращает конфиг символа, при отсутствии - дефолтный
	GetSignalsConfig(ctx context.Context, symbol string) (*models.BuySellSignalsConfigItem, error)

	// GetAllSignalsConfigs возвращает все сконфигурированные символы
	GetAllSignalsConfigs(ctx context.Context) ([]*models.BuySellSignalsConfigItem, error)

	// GetStopLossPercent возвращает ручной процент стопа для символа
	// или процесс-дефолт при отсутствии записи
	GetStopLossPercent(ctx context.Context, symbol string) (float64, error)

	// TakerFee - доля комиссии тейкера (например 0.0026)
	TakerFee() float64

	// QuoteCurrency - котируемая валюта процесса (например "USDT"):
	// достраивает торговую пару из базовой валюты конфига
	QuoteCurrency() string
}

// FlagProvider - чтение глобальных флагов задач.
// Отсутствующий флаг считается включенным.
type FlagProvider interface {
	IsEnabled(ctx context.Context, name string) (bool, error)
}

// Notifier - доставка уведомлений подписчикам
type Notifier interface {
	// NotifyFatal - необработанная ошибка guard-прохода
	NotifyFatal(ctx context.Context, component string, err error)

	// NotifyForcedExit - исполнен принудительный market-выход
	NotifyForcedExit(ctx context.Context, order *models.Order, reason string, metrics *models.LimitSellOrderGuardMetrics)

	// NotifyWarning - критическое состояние без немедленного действия
	NotifyWarning(ctx context.Context, message string)
}

// SignalStore - персист сигналов рынка
type SignalStore interface {
	Save(ctx context.Context, signal *models.MarketSignal) error

	// LastTrendSignal возвращает последний сохраненный трендовый сигнал
	// символа на таймфрейме, nil при отсутствии
	LastTrendSignal(ctx context.Context, symbol, timeframe string) (*models.MarketSignal, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MetricsBroadcaster - публикация guard-метрик в реальном времени (UI)
type MetricsBroadcaster interface {
	BroadcastGuardMetrics(metrics []*models.LimitSellOrderGuardMetrics)
	BroadcastSignal(signal *models.MarketSignal)
}
