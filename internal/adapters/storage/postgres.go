package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/athebyme/listing-sync-platform/pkg/tx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SyncStorageInterface определяет интерфейс взаимодействия с хранилищем PostgreSQL
type SyncStorageInterface interface {
	// SyncRun методы
	SaveRun(ctx context.Context, run *models.SyncRun) error
	GetRun(ctx context.Context, runID string) (*models.SyncRun, error)
	GetLatestRunByHash(ctx context.Context, shopID int64, sourceHash string) (*models.SyncRun, error)
	ListRuns(ctx context.Context, shopID int64, page, pageSize int) ([]*models.SyncRun, int, error)

	// ListingBackup методы
	SaveBackup(ctx context.Context, backup *models.ListingBackup) error
	GetBackup(ctx context.Context, backupID string) (*models.ListingBackup, error)
	ListBackups(ctx context.Context, shopID int64, limit int) ([]*models.ListingBackup, error)
}

type SyncStoragePort interface {
	SyncStorageInterface

	Close() error
}

// backupRetention — сколько последних резервных копий магазина хранится в БД
const backupRetention = 50

// SyncStorage реализация интерфейса хранилища для PostgreSQL
type SyncStorage struct {
	pool *pgxpool.Pool
	txm  tx.TxManager
}

// NewPostgresStorage создает новый экземпляр SyncStorage
func NewPostgresStorage(ctx context.Context, connectionString string) (*SyncStorage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &SyncStorage{
		pool: pool,
		txm:  tx.NewTxManager(pool),
	}, nil
}

func NewPostgresStorageWithPool(ctx context.Context, pool *pgxpool.Pool) (*SyncStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &SyncStorage{
		pool: pool,
		txm:  tx.NewTxManager(pool),
	}, nil
}

// Close закрывает соединение с БД
func (r *SyncStorage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает исполнителя запросов (транзакцию или пул)
func (r *SyncStorage) getExecutor(ctx context.Context) executor {
	if txFromCtx, ok := tx.GetTxFromContext(ctx); ok {
		return txFromCtx // pgx.Tx реализует нужные методы
	}
	return r.pool // *pgxpool.Pool тоже реализует нужные методы
}

// SaveRun сохраняет запись о прогоне синхронизации
func (r *SyncStorage) SaveRun(ctx context.Context, run *models.SyncRun) error {
	executor := r.getExecutor(ctx)

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sync.runs (id, shop_id, source_hash, status, total, processed, failed, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET
			status = $4,
			total = $5,
			processed = $6,
			failed = $7,
			finished_at = $9,
			error = $10
	`

	_, err := executor.Exec(ctx, query, run.ID, run.ShopID, run.SourceHash, run.Status,
		run.Total, run.Processed, run.Failed, run.StartedAt, run.FinishedAt, run.Error)
	if err != nil {
		return fmt.Errorf("failed to save sync run: %w", err)
	}
	return nil
}

// GetRun получает прогон по ID
func (r *SyncStorage) GetRun(ctx context.Context, runID string) (*models.SyncRun, error) {
	executor := r.getExecutor(ctx)

	query := `
		SELECT id, shop_id, source_hash, status, total, processed, failed, started_at, finished_at, error
		FROM sync.runs
		WHERE id = $1
	`

	var run models.SyncRun
	row := executor.QueryRow(ctx, query, runID)
	err := row.Scan(&run.ID, &run.ShopID, &run.SourceHash, &run.Status, &run.Total,
		&run.Processed, &run.Failed, &run.StartedAt, &run.FinishedAt, &run.Error)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Прогон не найден
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	return &run, nil
}

// GetLatestRunByHash получает последний прогон для указанного хэша исходного файла
func (r *SyncStorage) GetLatestRunByHash(ctx context.Context, shopID int64, sourceHash string) (*models.SyncRun, error) {
	executor := r.getExecutor(ctx)

	query := `
		SELECT id, shop_id, source_hash, status, total, processed, failed, started_at, finished_at, error
		FROM sync.runs
		WHERE shop_id = $1 AND source_hash = $2
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run models.SyncRun
	row := executor.QueryRow(ctx, query, shopID, sourceHash)
	err := row.Scan(&run.ID, &run.ShopID, &run.SourceHash, &run.Status, &run.Total,
		&run.Processed, &run.Failed, &run.StartedAt, &run.FinishedAt, &run.Error)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	return &run, nil
}

// ListRuns возвращает список прогонов с поддержкой пагинации
func (r *SyncStorage) ListRuns(ctx context.Context, shopID int64, page, pageSize int) ([]*models.SyncRun, int, error) {
	executor := r.getExecutor(ctx)

	countQuery := `
		SELECT COUNT(*)
		FROM sync.runs
		WHERE shop_id = $1
	`

	var total int
	if err := executor.QueryRow(ctx, countQuery, shopID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sync runs: %w", err)
	}

	// Если нет записей, возвращаем пустой результат
	if total == 0 {
		return []*models.SyncRun{}, 0, nil
	}

	query := `
		SELECT id, shop_id, source_hash, status, total, processed, failed, started_at, finished_at, error
		FROM sync.runs
		WHERE shop_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := executor.Query(ctx, query, shopID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		err := rows.Scan(&run.ID, &run.ShopID, &run.SourceHash, &run.Status, &run.Total,
			&run.Processed, &run.Failed, &run.StartedAt, &run.FinishedAt, &run.Error)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sync run row: %w", err)
		}
		runs = append(runs, &run)
	}

	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("error while iterating sync run rows: %w", rows.Err())
	}

	return runs, total, nil
}

// SaveBackup сохраняет резервную копию листингов и вычищает копии сверх
// лимита хранения. Вставка и чистка выполняются в одной транзакции
func (r *SyncStorage) SaveBackup(ctx context.Context, backup *models.ListingBackup) error {
	if backup.ID == "" {
		backup.ID = uuid.New().String()
	}
	if backup.CreatedAt.IsZero() {
		backup.CreatedAt = time.Now().UTC()
	}

	return r.txm.Do(ctx, func(ctx context.Context) error {
		executor := r.getExecutor(ctx)

		insertQuery := `
			INSERT INTO sync.backups (id, shop_id, source_hash, filename, listings, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		_, err := executor.Exec(ctx, insertQuery, backup.ID, backup.ShopID, backup.SourceHash,
			backup.Filename, backup.Listings, backup.Content, backup.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save backup: %w", err)
		}

		pruneQuery := `
			DELETE FROM sync.backups
			WHERE shop_id = $1 AND id NOT IN (
				SELECT id FROM sync.backups
				WHERE shop_id = $1
				ORDER BY created_at DESC
				LIMIT $2
			)
		`

		if _, err := executor.Exec(ctx, pruneQuery, backup.ShopID, backupRetention); err != nil {
			return fmt.Errorf("failed to prune old backups: %w", err)
		}

		return nil
	})
}

// GetBackup получает резервную копию по ID вместе с содержимым
func (r *SyncStorage) GetBackup(ctx context.Context, backupID string) (*models.ListingBackup, error) {
	executor := r.getExecutor(ctx)

	query := `
		SELECT id, shop_id, source_hash, filename, listings, content, created_at
		FROM sync.backups
		WHERE id = $1
	`

	var backup models.ListingBackup
	row := executor.QueryRow(ctx, query, backupID)
	err := row.Scan(&backup.ID, &backup.ShopID, &backup.SourceHash, &backup.Filename,
		&backup.Listings, &backup.Content, &backup.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Копия не найдена
		}
		return nil, fmt.Errorf("failed to get backup: %w", err)
	}

	return &backup, nil
}

// ListBackups возвращает список резервных копий без содержимого
func (r *SyncStorage) ListBackups(ctx context.Context, shopID int64, limit int) ([]*models.ListingBackup, error) {
	executor := r.getExecutor(ctx)

	query := `
		SELECT id, shop_id, source_hash, filename, listings, created_at
		FROM sync.backups
		WHERE shop_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := executor.Query(ctx, query, shopID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var backups []*models.ListingBackup
	for rows.Next() {
		var backup models.ListingBackup
		err := rows.Scan(&backup.ID, &backup.ShopID, &backup.SourceHash, &backup.Filename,
			&backup.Listings, &backup.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}
		backups = append(backups, &backup)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error while iterating backup rows: %w", rows.Err())
	}

	return backups, nil
}
