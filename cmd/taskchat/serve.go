package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"taskchat/internal/agent"
	"taskchat/internal/api"
	"taskchat/internal/bot"
	"taskchat/internal/config"
	"taskchat/internal/llm/openai"
	"taskchat/internal/repository"
	"taskchat/internal/service"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd runs the service until SIGINT or SIGTERM.
type ServeCmd struct {
	Config string `short:"f" long:"config" description:"YAML config path"`
}

func (c *ServeCmd) Execute(_ []string) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		log.Printf("[error] config: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		log.Printf("[error] %v", err)
		return err
	}
	log.Println("[info] shutdown complete")
	return nil
}

func serve(ctx context.Context, cfg config.Config) error {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	taskStore, closeStore, err := openTaskStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	taskSvc := service.NewTaskService(taskStore)
	conversationSvc := service.NewConversationService(repository.NewConversationRepository(db))

	model := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.Model,
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithAttribution(cfg.LLM.Referer, cfg.LLM.Title),
		openai.WithTimeout(cfg.LLM.Timeout()),
		openai.WithMaxRetries(cfg.LLM.MaxRetries),
	)
	orchestrator := agent.NewOrchestrator(model, conversationSvc, agent.NewDispatcher(taskSvc), agent.Options{
		HistoryLimit:     cfg.HistoryLimit,
		MaxToolRounds:    cfg.MaxToolRounds,
		MaxMessageLength: cfg.MaxMessageLength,
	})

	router := api.NewRouter(
		api.NewAuthenticator(cfg.JWTSecret),
		api.NewChatController(orchestrator, conversationSvc),
		api.NewTaskController(taskSvc),
	)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	if cfg.TelegramEnabled() {
		stopTelegram, err := startTelegram(ctx, cfg, db, orchestrator, taskSvc, errCh)
		if err != nil {
			return err
		}
		defer stopTelegram()
	}

	go func() {
		log.Printf("[info] http listening on %s model=%s store=%s", cfg.HTTPAddr, cfg.LLM.Model, cfg.TaskStore)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[warn] http shutdown: %v", err)
	}
	return runErr
}

// openTaskStore picks the task store named in the config. The returned func
// releases it.
func openTaskStore(ctx context.Context, cfg config.Config, db *gorm.DB) (service.TaskStore, func(), error) {
	if cfg.TaskStore != config.TaskStoreNeo4j {
		return repository.NewTaskRepository(db), func() {}, nil
	}

	driver, err := repository.NewNeo4jDriver(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
	if err != nil {
		return nil, nil, err
	}
	closeDriver := func() {
		if err := driver.Close(context.Background()); err != nil {
			log.Printf("[warn] close neo4j driver: %v", err)
		}
	}

	store := repository.NewNeo4jTaskRepository(driver, cfg.Neo4j.Database)
	if err := store.EnsureSchema(ctx); err != nil {
		closeDriver()
		return nil, nil, err
	}
	log.Printf("[info] tasks stored in neo4j at %s", cfg.Neo4j.URI)
	return store, closeDriver, nil
}

func startTelegram(ctx context.Context, cfg config.Config, db *gorm.DB, turns bot.TurnHandler, taskSvc *service.TaskService, errCh chan<- error) (func(), error) {
	telegramBot, err := bot.New(cfg.TelegramToken, turns, repository.NewUserRepository(db), taskSvc, service.NewReminderService(taskSvc))
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	scheduler := service.NewSchedulerService(time.Local)
	sendReports := func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[warn] report: %v", err)
		}
	}
	switch {
	case cfg.ReportTime != "":
		if _, err := scheduler.ScheduleDaily(cfg.ReportTime, sendReports); err != nil {
			return nil, fmt.Errorf("schedule reports: %w", err)
		}
	case cfg.ReportInterval() > 0:
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval(), sendReports); err != nil {
			return nil, fmt.Errorf("schedule reports: %w", err)
		}
	}
	scheduler.Start()

	go func() {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("bot stopped: %w", err)
		}
	}()
	log.Println("[info] telegram channel started")

	return scheduler.Stop, nil
}
