// main.go — точка входа mkt-uploader.
// Консоль загрузки маркетинговых CSV-выгрузок в BigQuery.
package main

import (
	"context"
	"log"
	"log/slog"

	apihandlers "github.com/bigkaa/goartstore/mkt-uploader/internal/api/handlers"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/api/middleware"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/auth"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/bqload"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/config"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/schema"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/server"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/service"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/storage/staging"
	uihandlers "github.com/bigkaa/goartstore/mkt-uploader/internal/ui/handlers"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("mkt-uploader запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)
	if cfg.LoginPassword == "" {
		logger.Warn("APP_LOGIN_PASSWORD не задан: вход и загрузка будут отклоняться")
	}

	// 3. Наборы данных и схемы
	datasets, schemas, err := schema.LoadDefinitions(cfg.DatasetsFile, cfg.SchemaDir)
	if err != nil {
		logger.Error("Ошибка загрузки наборов данных", slog.String("error", err.Error()))
		log.Fatalf("Ошибка загрузки наборов данных: %v", err)
	}
	var cache *schema.Cache
	if cfg.SchemaCacheSize > 0 {
		cache = schema.NewCache(cfg.SchemaCacheSize, cfg.SchemaCacheTTL)
	}
	registry := schema.NewRegistry(datasets, schemas, cache, logger)

	// Схемы проверяются при старте; ошибка не фатальна — конфигурацию можно
	// исправить на диске, загрузка такого набора вернёт ConfigurationError.
	if _, err := registry.All(); err != nil {
		logger.Warn("Не все схемы читаются", slog.String("error", err.Error()))
	}

	// 4. i18n
	bundle, err := i18n.Load(cfg.DefaultLang, logger)
	if err != nil {
		log.Fatalf("Ошибка загрузки каталогов сообщений: %v", err)
	}

	// 5. Временные файлы и загрузка в BigQuery
	stager, err := staging.New(cfg.StagingDir)
	if err != nil {
		log.Fatalf("Ошибка создания каталога временных файлов: %v", err)
	}
	loader := bqload.NewLoader(stager, bqload.CredentialsConfig{
		ServiceAccountJSON: cfg.ServiceAccountJSON,
		FallbackProjects:   cfg.FallbackProjects,
	}, bqload.NewBigQueryClient, logger)
	ingest := service.NewIngestService(registry, loader, logger)

	// 6. Мониторинг зависимостей (опционально)
	var deps apihandlers.DependencyChecker
	if cfg.DephealthEnabled {
		dhSvc, err := service.NewDephealthService(service.DephealthConfig{
			ServiceID:     cfg.ServiceID,
			Group:         cfg.DephealthGroup,
			BigQueryURL:   cfg.BigQueryHealthURL,
			HealthPath:    "/discovery/v1/apis/bigquery/v2/rest",
			CheckInterval: cfg.DephealthCheckInterval,
			IsEntry:       cfg.DephealthIsEntry,
		}, logger)
		if err != nil {
			log.Fatalf("Ошибка создания DephealthService: %v", err)
		}
		if err := dhSvc.Start(context.Background()); err != nil {
			log.Fatalf("Ошибка запуска мониторинга зависимостей: %v", err)
		}
		defer dhSvc.Stop()
		deps = dhSvc
	}

	// 7. HTTP-обработчики и маршруты
	sessions := auth.NewSessionManager(cfg.LoginPassword, cfg.CookieSecure)
	router := server.NewRouter(server.Routes{
		Sessions:    sessions,
		Bundle:      bundle,
		DefaultLang: cfg.DefaultLang,
		Upload:      apihandlers.NewUploadHandler(ingest, cfg.MaxUploadSize, logger),
		Datasets:    apihandlers.NewDatasetsHandler(registry, logger),
		Health:      apihandlers.NewHealthHandler(registry, deps),
		Auth:        uihandlers.NewAuthHandler(sessions, logger),
		Picker:      uihandlers.NewPickerHandler(registry, logger),
	}, logger,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 8. Запуск сервера (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, router)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}

	logger.Info("mkt-uploader остановлен")
}
