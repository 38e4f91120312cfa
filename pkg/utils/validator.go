package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация входных данных API и конфигурации

// symbolPairRe - формат торговой пары: BASE/QUOTE, например ETH/EUR
var symbolPairRe = regexp.MustCompile(`^[A-Z0-9]{2,10}/[A-Z0-9]{2,10}$`)

// currencyRe - формат одиночной криптовалюты: ETH, BTC, SOL
var currencyRe = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// ValidateSymbolPair проверяет формат торговой пары (ETH/EUR)
func ValidateSymbolPair(symbol string) error {
	if !symbolPairRe.MatchString(strings.ToUpper(strings.TrimSpace(symbol))) {
		return fmt.Errorf("invalid symbol pair format: %q (expected BASE/QUOTE)", symbol)
	}
	return nil
}

// ValidateCurrency проверяет формат криптовалюты (ETH)
func ValidateCurrency(symbol string) error {
	if !currencyRe.MatchString(strings.ToUpper(strings.TrimSpace(symbol))) {
		return fmt.Errorf("invalid currency format: %q", symbol)
	}
	return nil
}

// BaseCurrency извлекает базовую валюту из пары: "ETH/EUR" -> "ETH".
// Для строки без разделителя возвращает её саму в верхнем регистре.
func BaseCurrency(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if idx := strings.IndexByte(s, '/'); idx > 0 {
		return s[:idx]
	}
	return s
}

// ValidatePositive проверяет, что числовой параметр положителен
func ValidatePositive(name string, value float64) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, value)
	}
	return nil
}
