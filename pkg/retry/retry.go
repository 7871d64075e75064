package retry

import (
	"context"
	"time"
)

// Policy описывает стратегию повторных попыток
type Policy struct {
	MaxAttempts    int                  // общее число попыток, включая первую
	InitialBackoff time.Duration        // пауза перед второй попыткой
	BackoffFactor  float64              // множитель паузы между попытками (1.0 — фиксированная пауза)
	MaxBackoff     time.Duration        // верхняя граница паузы (0 — без ограничения)
	Retryable      func(err error) bool // предикат повторяемости ошибки
}

// Fixed возвращает политику с фиксированной паузой между попытками
func Fixed(maxAttempts int, backoff time.Duration, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: backoff,
		BackoffFactor:  1.0,
		Retryable:      retryable,
	}
}

// Exponential возвращает политику с экспоненциальным ростом паузы
func Exponential(maxAttempts int, base time.Duration, factor float64, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: base,
		BackoffFactor:  factor,
		Retryable:      retryable,
	}
}

// Do выполняет операцию с повторными попытками согласно политике.
// Операция повторяется, пока она возвращает повторяемую ошибку и не исчерпан
// лимит попыток. Неповторяемая ошибка возвращается сразу. Отмена контекста
// прерывает ожидание между попытками
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := policy.InitialBackoff
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}

		if policy.Retryable != nil && !policy.Retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if policy.BackoffFactor > 1.0 {
			backoff = time.Duration(float64(backoff) * policy.BackoffFactor)
			if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
				backoff = policy.MaxBackoff
			}
		}
	}

	return err
}
