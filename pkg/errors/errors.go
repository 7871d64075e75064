package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ----------------- контрольные точки ------------------
var (
	// ErrCheckpointMiss возвращается хранилищем, если контрольная точка
	// для указанного хэша источника не найдена
	ErrCheckpointMiss = errors.New("checkpoint not found")
)

// ErrorKind классифицирует ошибки удаленного API каталога
type ErrorKind int

const (
	// KindTransientNetwork — транспортная ошибка без HTTP-статуса
	// (обрыв соединения, таймаут). Повторяется
	KindTransientNetwork ErrorKind = iota

	// KindRetryableServer — HTTP 5xx, 429 или 408. Повторяется
	KindRetryableServer

	// KindTerminalClient — остальные 4xx. Не повторяется никогда
	KindTerminalClient

	// KindDataError — некорректное или неожиданное тело ответа. Не повторяется
	KindDataError
)

// String возвращает человекочитаемое имя класса ошибки
func (k ErrorKind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindRetryableServer:
		return "retryable_server"
	case KindTerminalClient:
		return "terminal_client"
	case KindDataError:
		return "data_error"
	default:
		return "unknown"
	}
}

// APIError описывает ошибку запроса к удаленному API каталога
type APIError struct {
	Kind       ErrorKind // класс ошибки
	StatusCode int       // HTTP-статус (0, если ответа не было)
	Op         string    // операция, в которой возникла ошибка
	Err        error     // исходная ошибка
}

// Error реализация интерфейса error
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap возвращает исходную ошибку
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewTransport создает ошибку транспортного уровня (ответа не было)
func NewTransport(op string, err error) *APIError {
	return &APIError{Kind: KindTransientNetwork, Op: op, Err: err}
}

// NewData создает ошибку разбора тела ответа
func NewData(op string, err error) *APIError {
	return &APIError{Kind: KindDataError, Op: op, Err: err}
}

// FromStatus классифицирует ошибку по HTTP-статусу ответа
func FromStatus(op string, statusCode int, err error) *APIError {
	kind := KindTerminalClient
	if statusCode >= 500 ||
		statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout {
		kind = KindRetryableServer
	}
	return &APIError{Kind: kind, StatusCode: statusCode, Op: op, Err: err}
}

// IsRetryable сообщает, имеет ли смысл повторять операцию.
// Повторяются только транспортные ошибки и ошибки класса RetryableServer;
// хинты вида Retry-After из тела ответа сознательно игнорируются —
// используется фиксированный экспоненциальный backoff
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindTransientNetwork || apiErr.Kind == KindRetryableServer
	}
	return false
}

// KindOf возвращает класс ошибки API или KindDataError, если ошибка не классифицирована
func KindOf(err error) (ErrorKind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}
