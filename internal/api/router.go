package api

import (
	"net/http"
	"time"

	storage "github.com/athebyme/listing-sync-platform/internal/adapters/storage"
	"github.com/athebyme/listing-sync-platform/internal/api/handlers"
	"github.com/athebyme/listing-sync-platform/internal/api/middleware"
	"github.com/athebyme/listing-sync-platform/internal/domain/services"
	"github.com/athebyme/listing-sync-platform/internal/security"
	"github.com/athebyme/listing-sync-platform/pkg/auth"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter настраивает маршрутизатор
func SetupRouter(
	syncService services.SyncServiceInterface,
	syncStorage storage.SyncStoragePort,
	logger interfaces.LoggerPort,
	corsAllowedOrigins []string,
	keycloakClient *auth.KeycloakClient,
	jwtManager *security.JWTManager,
	shopID int64,
) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Timeout(5 * time.Minute)) // выгрузка каталога может быть долгой
	r.Use(middleware.CORS(corsAllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RateLimiter(1000, time.Minute))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Keycloak имеет приоритет; при выключенном Keycloak API защищается
		// сервисным HMAC-токеном, если задан секрет
		switch {
		case keycloakClient != nil:
			r.Use(auth.AuthMiddleware(keycloakClient, logger))
		case jwtManager != nil:
			r.Use(middleware.JWTAuth(jwtManager, logger))
		}

		syncHandler := handlers.NewSyncHandler(syncService, syncStorage, logger, shopID)

		// Маршруты движка синхронизации
		r.Route("/sync", func(r chi.Router) {
			// Выгрузка всех листингов магазина в CSV
			r.Get("/export", syncHandler.Export)

			// Загрузка отредактированного CSV и предпросмотр изменений
			r.Post("/preview", syncHandler.Preview)

			// Применение одобренных изменений
			r.Post("/apply", syncHandler.Apply)

			// Резервная копия без применения
			r.Post("/backup", syncHandler.Backup)

			// Журнал прогонов
			r.Route("/runs", func(r chi.Router) {
				r.Get("/", syncHandler.ListRuns)
				r.Get("/by-hash/{hash}", syncHandler.GetRunByHash)
				r.Get("/{id}", syncHandler.GetRun)
			})

			// Резервные копии
			r.Route("/backups", func(r chi.Router) {
				r.Get("/", syncHandler.ListBackups)
				r.Get("/{id}/download", syncHandler.DownloadBackup)
			})
		})
	})

	return r
}
