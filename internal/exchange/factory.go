package exchange

import (
	"fmt"
	"strings"
)

// SupportedExchanges - список поддерживаемых бирж
var SupportedExchanges = []string{
	"bit2me",
	"mexc",
}

// Проверка реализации интерфейса на этапе компиляции
var (
	_ Exchange = (*Bit2Me)(nil)
	_ Exchange = (*MEXC)(nil)
)

// NewExchange создает новый экземпляр биржи по имени
func NewExchange(name, apiKey, secretKey string) (Exchange, error) {
	name = strings.ToLower(name)

	switch name {
	case "bit2me":
		return NewBit2Me(apiKey, secretKey), nil
	case "mexc":
		return NewMEXC(apiKey, secretKey), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedExchanges {
		if name == supported {
			return true
		}
	}
	return false
}
