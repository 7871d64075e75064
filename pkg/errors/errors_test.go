package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus_Classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"внутренняя ошибка сервера", 500, KindRetryableServer},
		{"плохой шлюз", 502, KindRetryableServer},
		{"лимит запросов", 429, KindRetryableServer},
		{"таймаут запроса", 408, KindRetryableServer},
		{"неверный запрос", 400, KindTerminalClient},
		{"нет доступа", 403, KindTerminalClient},
		{"не найдено", 404, KindTerminalClient},
		{"конфликт", 409, KindTerminalClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus("op", tt.status, errors.New("boom"))
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, err.StatusCode)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTransport("op", errors.New("conn reset"))))
	assert.True(t, IsRetryable(FromStatus("op", 503, errors.New("boom"))))
	assert.False(t, IsRetryable(FromStatus("op", 404, errors.New("boom"))))
	assert.False(t, IsRetryable(NewData("op", errors.New("bad json"))))
	assert.False(t, IsRetryable(errors.New("обычная ошибка")))
}

func TestIsRetryable_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("страница 3: %w", FromStatus("op", 500, errors.New("boom")))
	assert.True(t, IsRetryable(wrapped))
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("исходная причина")
	err := FromStatus("op", 500, cause)
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(NewTransport("op", errors.New("boom")))
	assert.True(t, ok)
	assert.Equal(t, KindTransientNetwork, kind)

	_, ok = KindOf(errors.New("не классифицирована"))
	assert.False(t, ok)
}
