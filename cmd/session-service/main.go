package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scio-practice/session-service/internal/collab"
	"github.com/scio-practice/session-service/internal/config"
	"github.com/scio-practice/session-service/internal/handlers"
	"github.com/scio-practice/session-service/internal/session"
	"github.com/scio-practice/session-service/internal/store"
	"github.com/scio-practice/session-service/internal/utils"
	"github.com/scio-practice/session-service/internal/validator"
	"github.com/scio-practice/session-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.Error("failed to create event publisher, continuing without events", "error", err)
		publisher = nil
	}

	records := buildRecordStore(cfg, logger)
	stores := buildStoreFactory(cfg, records, logger)

	deps := session.Deps{
		Stores:    stores,
		Validator: validator.New(),
		Publisher: publisher,
		Logger:    logger,
	}

	deps.Questions = collab.NewQuestionClient(cfg.QuestionAPIURL, logger)
	if cfg.AssignmentAPIURL != "" {
		assignments := collab.NewAssignmentClient(cfg.AssignmentAPIURL, logger)
		deps.Assignments = assignments
		deps.Submitter = assignments
	}
	if cfg.BookmarkAPIURL != "" {
		bookmarks := collab.NewBookmarkClient(cfg.BookmarkAPIURL, logger)
		deps.Bookmarks = bookmarks
		deps.BookmarkSaver = bookmarks
	}
	if cfg.MetricsAPIURL != "" {
		deps.Metrics = collab.NewMetricsClient(cfg.MetricsAPIURL, logger)
	}
	if cfg.GraderAPIURL != "" {
		deps.Grader = collab.NewGraderClient(cfg.GraderAPIURL, logger)
	}
	if cfg.ExplainAPIURL != "" {
		deps.Explain = collab.NewExplainClient(cfg.ExplainAPIURL, logger)
	}

	manager := session.NewManager(deps)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlers.NewHandlerManager(manager, logger).SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("starting session service", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close event publisher", "error", err)
		}
	}
}

// buildRecordStore connects the structured store when a database is
// configured. Without one, assignment countdown mirroring and result
// snapshots are skipped.
func buildRecordStore(cfg *config.Config, logger utils.Logger) store.RecordStore {
	if cfg.DatabaseURL == "" {
		logger.Info("no database configured, structured records disabled")
		return nil
	}
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("database connection failed, structured records disabled", "error", err)
		return nil
	}
	records, err := store.NewGormRecords(db)
	if err != nil {
		logger.Error("record store migration failed, structured records disabled", "error", err)
		return nil
	}
	return records
}

// buildStoreFactory prefers Redis, namespaced per user. When Redis is not
// reachable the service still runs on per-user in-memory stores; sessions
// then survive reloads only as long as the process does.
func buildStoreFactory(cfg *config.Config, records store.RecordStore, logger utils.Logger) session.StoreFactory {
	client, err := pkg.NewRedisClient(cfg)
	if err == nil {
		return func(userID string) *store.Adapter {
			return store.NewAdapter(store.NewRedisStore(client, userID, logger), records, logger)
		}
	}
	logger.Warn("redis unavailable, falling back to in-memory stores", "error", err)

	var mu sync.Mutex
	memories := make(map[string]*store.MemoryStore)
	return func(userID string) *store.Adapter {
		mu.Lock()
		defer mu.Unlock()
		mem, ok := memories[userID]
		if !ok {
			mem = store.NewMemoryStore()
			memories[userID] = mem
		}
		return store.NewAdapter(mem, records, logger)
	}
}
