package utils

import (
	"fmt"
	"time"
)

// time.go - утилиты для работы с таймфреймами свечей
//
// Используются планировщиком задач сигналов и retention-очисткой
// истории сигналов.

// TimeframeDuration возвращает длительность одного бара таймфрейма.
//
// Поддерживаются таймфреймы, которые отдает биржа: 1m, 5m, 15m, 30m,
// 1h, 4h, 1d. Неизвестный таймфрейм - ошибка, не дефолт: тихая
// подмена периода исказит все индикаторы.
func TimeframeDuration(timeframe string) (time.Duration, error) {
	switch timeframe {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %q", timeframe)
	}
}

// TruncateToTimeframe выравнивает время по границе бара (UTC)
func TruncateToTimeframe(t time.Time, timeframe string) (time.Time, error) {
	d, err := TimeframeDuration(timeframe)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(d), nil
}

// DaysAgo возвращает момент N дней назад в UTC.
// Используется retention-политикой market_signal.
func DaysAgo(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}
