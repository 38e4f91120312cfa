package utils

import (
	"math"
)

// math.go - математические утилиты ценовых расчетов
//
// Назначение:
// Вспомогательные функции округления и процентных расчетов для
// guard-алгоритмов. Все функции чистые, без побочных эффектов.
//
// Асимметрия округлений намеренная и должна сохраняться:
// - цены продажи/стопы округляются ВНИЗ (FloorToPrecision):
//   занизить обещанную выручку безопасно, завысить - нет;
// - дистанции stop-loss (проценты) округляются ВВЕРХ (CeilToPrecision):
//   занизить ширину защитного зазора небезопасно.

// Допуск на двоичное представление: 25.05*100 дает 2505.0000000000005,
// без поправки ceil перескочил бы на целый тик
const roundingEpsilon = 1e-9

// FloorToPrecision округляет значение ВНИЗ до n знаков после запятой.
//
// Примеры:
//   - FloorToPrecision(1.23789, 2) = 1.23
//   - FloorToPrecision(1800.999, 0) = 1800.0
func FloorToPrecision(value float64, precision int) float64 {
	if precision < 0 {
		return value
	}
	factor := math.Pow(10, float64(precision))
	return math.Floor(value*factor+roundingEpsilon) / factor
}

// CeilToPrecision округляет значение ВВЕРХ до n знаков после запятой.
//
// Примеры:
//   - CeilToPrecision(1.23111, 2) = 1.24
//   - CeilToPrecision(2.250001, 4) = 2.2501
func CeilToPrecision(value float64, precision int) float64 {
	if precision < 0 {
		return value
	}
	factor := math.Pow(10, float64(precision))
	return math.Ceil(value*factor-roundingEpsilon) / factor
}

// RoundToPrecision округляет значение к ближайшему с n знаками.
// Используется только для отображения, не для торговых решений.
func RoundToPrecision(value float64, precision int) float64 {
	if precision < 0 {
		return value
	}
	factor := math.Pow(10, float64(precision))
	return math.Round(value*factor) / factor
}

// PercentBelow возвращает цену на percent процентов ниже базовой.
//
// PercentBelow(1000, 5) = 950
func PercentBelow(base, percent float64) float64 {
	return base * (1 - percent/100)
}

// PercentGap возвращает на сколько процентов low ниже high.
//
// PercentGap(1000, 920) = 8.0
// Возвращает 0 если high не положителен.
func PercentGap(high, low float64) float64 {
	if high <= 0 {
		return 0
	}
	return (1 - low/high) * 100
}

// Abs возвращает модуль числа
func Abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Min возвращает меньшее из двух чисел
func Min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Max возвращает большее из двух чисел
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Clamp ограничивает значение диапазоном [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
