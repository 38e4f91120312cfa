package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

// Типы исходящих уведомлений
const (
	NotificationTypeFatal      = "FATAL"
	NotificationTypeForcedExit = "FORCED_EXIT"
	NotificationTypeWarning    = "WARNING"
)

// maxMessageLength - лимит Telegram на длину одного сообщения
const maxMessageLength = 4096

// MessageSender - транспорт доставки plain-text уведомлений оператору.
//
// Объявлен на стороне потребителя: конкретная реализация живет
// в internal/telegram, в тестах подставляется mock.
type MessageSender interface {
	Send(ctx context.Context, text string) error
}

// NotificationService формирует и доставляет уведомления о событиях
// guard-задач.
//
// Сообщения - краткие plain-text сводки без стектрейсов и внутренних
// деталей: полные ошибки остаются в логах. Отказ транспорта не
// распространяется на вызывающего - задача не должна падать из-за
// недоступного Telegram.
type NotificationService struct {
	sender MessageSender
	logger *utils.Logger

	mu       sync.RWMutex
	disabled map[string]bool
}

// NewNotificationService создает сервис уведомлений.
// sender может быть nil: уведомления тогда только логируются.
func NewNotificationService(sender MessageSender, logger *utils.Logger) *NotificationService {
	return &NotificationService{
		sender:   sender,
		logger:   logger.WithComponent("notifications"),
		disabled: make(map[string]bool),
	}
}

// SetTypeEnabled включает или выключает доставку типа уведомлений.
// Неизвестные типы игнорируются при доставке как включенные.
func (s *NotificationService) SetTypeEnabled(notifType string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled {
		delete(s.disabled, strings.ToUpper(notifType))
	} else {
		s.disabled[strings.ToUpper(notifType)] = true
	}
}

func (s *NotificationService) typeEnabled(notifType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled[notifType]
}

// NotifyFatal сообщает о необработанной ошибке guard-прохода.
// Текст ошибки включается одной строкой, без стектрейса.
func (s *NotificationService) NotifyFatal(ctx context.Context, component string, err error) {
	msg := fmt.Sprintf("FATAL [%s]\n%v", component, err)
	s.deliver(ctx, NotificationTypeFatal, msg)
}

// NotifyForcedExit сообщает об исполненном принудительном market-выходе
func (s *NotificationService) NotifyForcedExit(ctx context.Context, order *models.Order, reason string, metrics *models.LimitSellOrderGuardMetrics) {
	var b strings.Builder
	fmt.Fprintf(&b, "FORCED EXIT %s\n", order.Symbol)
	fmt.Fprintf(&b, "reason: %s\n", reason)
	fmt.Fprintf(&b, "order %s cancelled, %.8f sold at market\n", order.ID, order.Amount)
	if metrics != nil {
		fmt.Fprintf(&b, "price %.8f / break-even %.8f / safeguard %.8f\n",
			metrics.CurrentPrice, metrics.BreakEvenPrice, metrics.SafeguardStopPrice)
		fmt.Fprintf(&b, "estimated P&L: %.8f", metrics.CurrentProfit)
	}
	s.deliver(ctx, NotificationTypeForcedExit, b.String())
}

// NotifyWarning сообщает о критическом состоянии без немедленного действия
func (s *NotificationService) NotifyWarning(ctx context.Context, message string) {
	s.deliver(ctx, NotificationTypeWarning, "WARNING\n"+message)
}

func (s *NotificationService) deliver(ctx context.Context, notifType, text string) {
	if !s.typeEnabled(notifType) {
		return
	}

	if len(text) > maxMessageLength {
		text = text[:maxMessageLength-3] + "..."
	}

	s.logger.Info("notification",
		utils.String("type", notifType),
		utils.String("text", text))

	if s.sender == nil {
		return
	}
	if err := s.sender.Send(ctx, text); err != nil {
		s.logger.Error("notification delivery failed",
			utils.String("type", notifType),
			utils.Err(err))
	}
}
