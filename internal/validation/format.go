// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

const secretKeyPrefix = "sk_"

// IsValidGatewayKey проверяет формат секретного ключа платёжного шлюза.
// Ключ должен начинаться с префикса "sk_" и содержать непустой хвост.
func IsValidGatewayKey(key string) bool {
	if !strings.HasPrefix(key, secretKeyPrefix) {
		return false
	}
	return len(key) > len(secretKeyPrefix)
}

// IsValidEmail выполняет поверхностную проверку адреса электронной почты:
// ровно один символ @ с непустыми частями без пробелов.
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") || at == len(email)-1 {
		return false
	}
	return !strings.ContainsFunc(email, unicode.IsSpace)
}

// IsValidCurrency проверяет, что код валюты состоит из трёх латинских букв.
func IsValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, ch := range code {
		if !unicode.IsLetter(ch) || ch > unicode.MaxASCII {
			return false
		}
	}
	return true
}
