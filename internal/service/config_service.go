package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"stopguard/internal/models"
	"stopguard/internal/repository"
	"stopguard/pkg/utils"
)

// Процессные дефолты конфигурации сигналов.
// Используются, когда для символа нет персистированной записи:
// конфигурация создается лениво и сохраняется только при явном
// изменении оператором.
const (
	defaultEMAShortPeriod = 9
	defaultEMAMidPeriod   = 21
	defaultEMALongPeriod  = 200

	defaultStopLossATRMultiplier   = 1.5
	defaultTakeProfitATRMultiplier = 3.0

	defaultADXThreshold        = 25.0
	defaultBuyVolumeThreshold  = 1.5
	defaultSellVolumeThreshold = 1.2
)

// ConfigService предоставляет настройки риска, сигналов и глобальные
// флаги задач поверх конфиг-репозиториев.
//
// Процессные значения (комиссия тейкера, котируемая валюта, дефолтный
// stop-loss процент) фиксируются при старте и не изменяются в рантайме.
type ConfigService struct {
	signalsRepo  SignalsConfigRepositoryInterface
	stopLossRepo StopLossRepositoryInterface
	flagRepo     FlagRepositoryInterface

	takerFee        float64
	quoteCurrency   string
	defaultStopLoss float64

	// Сериализует read-modify-write циклы stop-loss процентов:
	// конкурирующие апдейты одного символа не должны перетирать
	// друг друга частично прочитанным состоянием.
	stopLossMu sync.Mutex
}

// NewConfigService создает сервис конфигурации
func NewConfigService(
	signalsRepo SignalsConfigRepositoryInterface,
	stopLossRepo StopLossRepositoryInterface,
	flagRepo FlagRepositoryInterface,
	takerFee float64,
	quoteCurrency string,
	defaultStopLossPercent float64,
) *ConfigService {
	return &ConfigService{
		signalsRepo:     signalsRepo,
		stopLossRepo:    stopLossRepo,
		flagRepo:        flagRepo,
		takerFee:        takerFee,
		quoteCurrency:   strings.ToUpper(quoteCurrency),
		defaultStopLoss: defaultStopLossPercent,
	}
}

// DefaultSignalsConfig возвращает конфигурацию с процессными дефолтами.
// Авто-выходы по умолчанию выключены: принудительные действия требуют
// явного согласия оператора.
func DefaultSignalsConfig(symbol string) *models.BuySellSignalsConfigItem {
	item := models.NewBuySellSignalsConfigItem(symbol)
	item.EMAShortPeriod = defaultEMAShortPeriod
	item.EMAMidPeriod = defaultEMAMidPeriod
	item.EMALongPeriod = defaultEMALongPeriod
	item.StopLossATRMultiplier = defaultStopLossATRMultiplier
	item.TakeProfitATRMultiplier = defaultTakeProfitATRMultiplier
	item.EnableADXFilter = true
	item.ADXThreshold = defaultADXThreshold
	item.EnableBuyVolumeFilter = true
	item.BuyVolumeThreshold = defaultBuyVolumeThreshold
	item.EnableSellVolumeFilter = false
	item.SellVolumeThreshold = defaultSellVolumeThreshold
	return item
}

// GetSignalsConfig возвращает конфигурацию символа.
// При отсутствии записи возвращается дефолтная (без персиста).
func (s *ConfigService) GetSignalsConfig(ctx context.Context, symbol string) (*models.BuySellSignalsConfigItem, error) {
	item, err := s.signalsRepo.Get(ctx, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrSignalsConfigNotFound) {
			return DefaultSignalsConfig(symbol), nil
		}
		return nil, fmt.Errorf("get signals config %s: %w", symbol, err)
	}
	return item, nil
}

// GetAllSignalsConfigs возвращает все персистированные конфигурации
func (s *ConfigService) GetAllSignalsConfigs(ctx context.Context) ([]*models.BuySellSignalsConfigItem, error) {
	return s.signalsRepo.GetAll(ctx)
}

// UpdateSignalsConfig валидирует и сохраняет конфигурацию символа
func (s *ConfigService) UpdateSignalsConfig(ctx context.Context, item *models.BuySellSignalsConfigItem) error {
	if err := validateSignalsConfig(item); err != nil {
		return err
	}
	return s.signalsRepo.Upsert(ctx, item)
}

func validateSignalsConfig(item *models.BuySellSignalsConfigItem) error {
	if err := utils.ValidateCurrency(item.Symbol); err != nil {
		return err
	}
	if item.EMAShortPeriod < 2 || item.EMAMidPeriod <= item.EMAShortPeriod || item.EMALongPeriod <= item.EMAMidPeriod {
		return fmt.Errorf("EMA periods must satisfy 2 <= short < mid < long, got %d/%d/%d",
			item.EMAShortPeriod, item.EMAMidPeriod, item.EMALongPeriod)
	}
	if item.StopLossATRMultiplier <= 0 || item.TakeProfitATRMultiplier <= 0 {
		return fmt.Errorf("ATR multipliers must be positive")
	}
	if item.EnableADXFilter && item.ADXThreshold <= 0 {
		return fmt.Errorf("ADX threshold must be positive when the filter is enabled")
	}
	if item.EnableBuyVolumeFilter && item.BuyVolumeThreshold <= 0 {
		return fmt.Errorf("buy volume threshold must be positive when the filter is enabled")
	}
	if item.EnableSellVolumeFilter && item.SellVolumeThreshold <= 0 {
		return fmt.Errorf("sell volume threshold must be positive when the filter is enabled")
	}
	return nil
}

// GetStopLossPercent возвращает ручной stop-loss процент символа
// или процессный дефолт при отсутствии записи
func (s *ConfigService) GetStopLossPercent(ctx context.Context, symbol string) (float64, error) {
	item, err := s.stopLossRepo.Get(ctx, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrStopLossNotFound) {
			return s.defaultStopLoss, nil
		}
		return 0, fmt.Errorf("get stop loss percent %s: %w", symbol, err)
	}
	return item.Value, nil
}

// GetAllStopLossPercents возвращает все персистированные проценты
func (s *ConfigService) GetAllStopLossPercents(ctx context.Context) ([]*models.StopLossPercentItem, error) {
	return s.stopLossRepo.GetAll(ctx)
}

// SetStopLossPercent сохраняет ручной stop-loss процент символа.
// Диапазон [0.25, 20.0] валидируется на этапе конструирования записи.
func (s *ConfigService) SetStopLossPercent(ctx context.Context, symbol string, value float64) (*models.StopLossPercentItem, error) {
	if err := utils.ValidateCurrency(symbol); err != nil {
		return nil, err
	}
	item, err := models.NewStopLossPercentItem(symbol, value)
	if err != nil {
		return nil, err
	}

	s.stopLossMu.Lock()
	defer s.stopLossMu.Unlock()

	if err := s.stopLossRepo.Upsert(ctx, item); err != nil {
		return nil, fmt.Errorf("set stop loss percent %s: %w", symbol, err)
	}
	return item, nil
}

// DeleteStopLossPercent удаляет персональный процент: символ
// возвращается на процессный дефолт
func (s *ConfigService) DeleteStopLossPercent(ctx context.Context, symbol string) error {
	s.stopLossMu.Lock()
	defer s.stopLossMu.Unlock()
	return s.stopLossRepo.Delete(ctx, symbol)
}

// DefaultStopLossPercent возвращает процессный дефолт
func (s *ConfigService) DefaultStopLossPercent() float64 {
	return s.defaultStopLoss
}

// TakerFee возвращает долю комиссии тейкера (0.0026 = 0.26%)
func (s *ConfigService) TakerFee() float64 {
	return s.takerFee
}

// QuoteCurrency возвращает котируемую валюту процесса
func (s *ConfigService) QuoteCurrency() string {
	return s.quoteCurrency
}

// ============================================================
// Глобальные флаги задач
// ============================================================

// IsEnabled возвращает значение флага.
// Отсутствие записи трактуется как "включено": защитные задачи
// работают, пока их явно не выключили.
func (s *ConfigService) IsEnabled(ctx context.Context, name string) (bool, error) {
	flag, err := s.flagRepo.Get(ctx, name)
	if err != nil {
		return true, err
	}
	return flag.Value, nil
}

// GetAllFlags возвращает все известные флаги с актуальными значениями
func (s *ConfigService) GetAllFlags(ctx context.Context) ([]*models.GlobalFlag, error) {
	return s.flagRepo.GetAll(ctx)
}

// SetFlag устанавливает значение известного флага
func (s *ConfigService) SetFlag(ctx context.Context, name string, value bool) error {
	if !models.IsKnownFlag(name) {
		return fmt.Errorf("unknown flag %q", name)
	}
	return s.flagRepo.Set(ctx, name, value)
}
