package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/athebyme/listing-sync-platform/internal/adapters/csvio"
	storage "github.com/athebyme/listing-sync-platform/internal/adapters/storage"
	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/athebyme/listing-sync-platform/internal/domain/services"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	"github.com/athebyme/listing-sync-platform/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// maxCSVBytes — предельный размер загружаемого CSV
const maxCSVBytes = 20 << 20

// sessionTTL — время жизни сессии предпросмотра
const sessionTTL = time.Hour

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// previewSession хранит результат предпросмотра между запросами:
// идентификаторы изменений стабильны в пределах одной сессии
type previewSession struct {
	Preview   *models.Preview
	CreatedAt time.Time
}

// SyncHandler обработчик запросов движка синхронизации
type SyncHandler struct {
	syncService services.SyncServiceInterface
	storage     storage.SyncStoragePort
	logger      interfaces.LoggerPort
	shopID      int64

	mu       sync.Mutex
	sessions map[string]*previewSession // ключ — хэш содержимого CSV
}

// NewSyncHandler создает новый обработчик синхронизации
func NewSyncHandler(syncService services.SyncServiceInterface, syncStorage storage.SyncStoragePort, logger interfaces.LoggerPort, shopID int64) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		storage:     syncStorage,
		logger:      logger,
		shopID:      shopID,
		sessions:    make(map[string]*previewSession),
	}
}

// Preview обрабатывает загрузку отредактированного CSV и возвращает
// предпросмотр изменений вместе с хэшем исходного файла
func (h *SyncHandler) Preview(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCSVBytes))
	if err != nil || len(body) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Пустое или нечитаемое тело запроса",
		})
		return
	}

	desired, err := csvio.ParseDesired(bytes.NewReader(body))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: fmt.Sprintf("Не удалось разобрать CSV: %v", err),
		})
		return
	}

	preview, err := h.syncService.ComputePreview(r.Context(), desired)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка расчета предпросмотра",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка расчета предпросмотра",
		})
		return
	}

	sourceHash := utils.ContentHash(body)
	h.storeSession(sourceHash, preview)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data: map[string]interface{}{
			"source_hash": sourceHash,
			"changes":     preview.Changes,
			"summary":     preview.Summary,
		},
	})
}

// applyRequest — тело запроса на применение изменений
type applyRequest struct {
	SourceHash string   `json:"source_hash"`
	ChangeIDs  []string `json:"change_ids"`
}

// Apply запускает применение одобренных изменений в фоне.
// Перед применением делается резервная копия затрагиваемых листингов
func (h *SyncHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourceHash == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Требуются source_hash и change_ids",
		})
		return
	}

	session := h.session(req.SourceHash)
	if session == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: "Сессия предпросмотра не найдена или истекла; загрузите CSV заново",
		})
		return
	}

	approved := models.NewApprovalSet(req.ChangeIDs...)
	preview := session.Preview

	// Применение выполняется в фоне: клиент наблюдает прогресс через журнал
	// прогонов и события. Контекст запроса не используется, иначе прогон
	// оборвется вместе с соединением
	go func() {
		ctx := context.Background()
		if _, err := h.syncService.Snapshot(ctx, preview, approved, req.SourceHash); err != nil {
			h.logger.Error("Резервное копирование перед применением не удалось",
				interfaces.LogField{Key: "source_hash", Value: req.SourceHash},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			return
		}
		if err := h.syncService.Apply(ctx, req.SourceHash, preview.Changes, approved, nil); err != nil {
			h.logger.Error("Применение изменений не удалось",
				interfaces.LogField{Key: "source_hash", Value: req.SourceHash},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}()

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response{
		Success: true,
		Data: map[string]interface{}{
			"source_hash": req.SourceHash,
			"approved":    len(approved),
		},
	})
}

// backupRequest — тело запроса на резервную копию без применения
type backupRequest struct {
	SourceHash string   `json:"source_hash"`
	ChangeIDs  []string `json:"change_ids"`
}

// Backup делает резервную копию листингов, затрагиваемых одобренными
// изменениями, не применяя сами изменения, и возвращает ее содержимое
func (h *SyncHandler) Backup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourceHash == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Требуются source_hash и change_ids",
		})
		return
	}

	session := h.session(req.SourceHash)
	if session == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: "Сессия предпросмотра не найдена или истекла; загрузите CSV заново",
		})
		return
	}

	approved := models.NewApprovalSet(req.ChangeIDs...)
	backup, err := h.syncService.Snapshot(r.Context(), session.Preview, approved, req.SourceHash)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка создания резервной копии",
			interfaces.LogField{Key: "source_hash", Value: req.SourceHash},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка создания резервной копии",
		})
		return
	}

	// Нечего резервировать: среди одобренных нет обновлений и удалений
	if backup == nil {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, response{
			Success: true,
			Data: map[string]interface{}{
				"source_hash": req.SourceHash,
				"listings":    0,
			},
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backup.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(backup.Content)
}

// Export выгружает все листинги магазина и возвращает их в виде CSV
func (h *SyncHandler) Export(w http.ResponseWriter, r *http.Request) {
	stateFilter := r.URL.Query().Get("state")

	total, listings, err := h.syncService.FetchAll(r.Context(), stateFilter, nil)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка выгрузки листингов",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, errorResponse{
			Error:   "upstream_error",
			Code:    http.StatusBadGateway,
			Message: "Не удалось выгрузить листинги из каталога",
		})
		return
	}

	content, err := csvio.WriteListings(listings)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Не удалось сериализовать CSV",
		})
		return
	}

	filename := fmt.Sprintf("listings-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// ListRuns возвращает журнал прогонов синхронизации
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	runs, total, err := h.storage.ListRuns(r.Context(), h.shopID, page, pageSize)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения журнала прогонов",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка получения журнала прогонов",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    runs,
		Meta: map[string]interface{}{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

// GetRun возвращает один прогон по ID
func (h *SyncHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "ID прогона не указан",
		})
		return
	}

	run, err := h.storage.GetRun(r.Context(), runID)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения прогона",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка получения прогона",
		})
		return
	}

	if run == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: "Прогон не найден",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    run,
	})
}

// GetRunByHash возвращает последний прогон для указанного хэша исходного CSV.
// Клиент опрашивает этот эндпоинт, чтобы следить за фоновым применением
func (h *SyncHandler) GetRunByHash(w http.ResponseWriter, r *http.Request) {
	sourceHash := chi.URLParam(r, "hash")
	if sourceHash == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Хэш исходного файла не указан",
		})
		return
	}

	run, err := h.storage.GetLatestRunByHash(r.Context(), h.shopID, sourceHash)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения прогона по хэшу",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка получения прогона",
		})
		return
	}

	if run == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: "Прогон для указанного файла не найден",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    run,
	})
}

// ListBackups возвращает список резервных копий без содержимого
func (h *SyncHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	backups, err := h.storage.ListBackups(r.Context(), h.shopID, limit)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения списка резервных копий",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка получения списка резервных копий",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    backups,
	})
}

// DownloadBackup возвращает содержимое резервной копии в виде CSV
func (h *SyncHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	backupID := chi.URLParam(r, "id")
	if backupID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "ID резервной копии не указан",
		})
		return
	}

	backup, err := h.storage.GetBackup(r.Context(), backupID)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения резервной копии",
			interfaces.LogField{Key: "error", Value: err.Error()})
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{
			Error:   "internal_error",
			Code:    http.StatusInternalServerError,
			Message: "Ошибка получения резервной копии",
		})
		return
	}

	if backup == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: "Резервная копия не найдена",
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backup.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(backup.Content)
}

// storeSession сохраняет сессию предпросмотра и вычищает устаревшие
func (h *SyncHandler) storeSession(sourceHash string, preview *models.Preview) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for hash, session := range h.sessions {
		if time.Since(session.CreatedAt) > sessionTTL {
			delete(h.sessions, hash)
		}
	}
	h.sessions[sourceHash] = &previewSession{Preview: preview, CreatedAt: time.Now()}
}

// session возвращает живую сессию предпросмотра или nil
func (h *SyncHandler) session(sourceHash string) *previewSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[sourceHash]
	if !ok || time.Since(session.CreatedAt) > sessionTTL {
		return nil
	}
	return session
}
