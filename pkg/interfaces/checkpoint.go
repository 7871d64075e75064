package interfaces

import "context"

// CheckpointPort определяет интерфейс key-value хранилища контрольных точек
// синхронизации. Ключом служит хэш содержимого исходного CSV-файла, значением —
// сериализованная контрольная точка. Реализация может использовать Redis,
// BoltDB или любое другое KV-хранилище.
type CheckpointPort interface {
	// Load получает контрольную точку по хэшу источника.
	// Возвращает errors.ErrCheckpointMiss, если точка не найдена
	Load(ctx context.Context, sourceHash string) ([]byte, error)

	// Save сохраняет контрольную точку для указанного хэша источника
	Save(ctx context.Context, sourceHash string, value []byte) error

	// Clear удаляет контрольную точку. Отсутствие точки не является ошибкой
	Clear(ctx context.Context, sourceHash string) error

	// Close закрывает соединение с хранилищем
	Close() error
}
