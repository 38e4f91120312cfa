package websocket

import (
	"time"

	"stopguard/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeGuardMetrics - свежая расчетная сводка открытых
	// sell-ордеров. Отправляется после каждого прохода guard-задачи.
	MessageTypeGuardMetrics MessageType = "guardMetrics"

	// MessageTypeSignal - обнаруженный рыночный сигнал
	MessageTypeSignal MessageType = "signal"
)

// BaseMessage - общие поля всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// GuardMetricsMessage - сводка guard-метрик всех открытых sell-ордеров
type GuardMetricsMessage struct {
	BaseMessage
	Metrics []*models.LimitSellOrderGuardMetrics `json:"metrics"`
}

// SignalMessage - одно событие рыночного сигнала
type SignalMessage struct {
	BaseMessage
	Signal *models.MarketSignal `json:"signal"`
}

// NewGuardMetricsMessage создает сообщение сводки guard-метрик
func NewGuardMetricsMessage(metrics []*models.LimitSellOrderGuardMetrics) *GuardMetricsMessage {
	return &GuardMetricsMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeGuardMetrics,
			Timestamp: time.Now(),
		},
		Metrics: metrics,
	}
}

// NewSignalMessage создает сообщение рыночного сигнала
func NewSignalMessage(signal *models.MarketSignal) *SignalMessage {
	return &SignalMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSignal,
			Timestamp: time.Now(),
		},
		Signal: signal,
	}
}
