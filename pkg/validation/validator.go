package validation

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// MaxRequestIDLength максимальная длина входящего идентификатора запроса
const MaxRequestIDLength = 128

// ValidatePort проверяет номер TCP порта. Порт 0 допустим: ядро выдаст свободный порт.
func ValidatePort(port int, fieldName string) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s must be between 0 and 65535, got: %d", fieldName, port)
	}
	return nil
}

// ValidateHost проверяет адрес для прослушивания. Пустой хост означает все интерфейсы.
func ValidateHost(host, fieldName string) error {
	if strings.ContainsAny(host, " \t\n\r") {
		return fmt.Errorf("%s contains invalid whitespace characters", fieldName)
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return fmt.Errorf("%s should not include http/https scheme", fieldName)
	}

	if strings.Contains(host, ":") && !strings.Contains(host, "::") && strings.Count(host, ":") == 1 {
		return fmt.Errorf("%s should not include port", fieldName)
	}

	return nil
}

// ValidateEnum проверяет значение на соответствие enum
func ValidateEnum(value string, allowedValues []string, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	for _, allowed := range allowedValues {
		if value == allowed {
			return nil
		}
	}

	return fmt.Errorf("invalid %s: %s, allowed values: %v", fieldName, value, allowedValues)
}

// ValidateDuration проверяет строку длительности. Пустое значение допустимо.
func ValidateDuration(value, fieldName string) error {
	if value == "" {
		return nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative, got: %s", fieldName, value)
	}
	return nil
}

// ValidateRatio проверяет, что значение лежит в отрезке [0, 1]
func ValidateRatio(value float64, fieldName string) error {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got: %v", fieldName, value)
	}
	return nil
}

// ValidateRequestID проверяет идентификатор запроса из заголовка.
// Допускаются только печатные символы без пробелов, чтобы значение было безопасно писать в лог.
func ValidateRequestID(id string) error {
	if id == "" {
		return fmt.Errorf("request id is required")
	}
	if len(id) > MaxRequestIDLength {
		return fmt.Errorf("request id must not exceed %d characters, got: %d", MaxRequestIDLength, len(id))
	}
	for _, r := range id {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("request id contains invalid character %q", r)
		}
	}
	return nil
}
