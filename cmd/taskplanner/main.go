package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"task-planner/internal/api"
	"task-planner/internal/bot"
	"task-planner/internal/config"
	"task-planner/internal/lock"
	"task-planner/internal/logging"
	"task-planner/internal/repository"
	"task-planner/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("planner stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		client, err := lock.Connect(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, 0)
	} else if db.Dialector.Name() == "postgres" {
		logger.Warn("REDIS_ADDR is not set, recurrence locking is per process; run a single replica")
	}

	categorySvc := service.NewCategoryService(categoryRepo)
	taskSvc := service.NewTaskService(taskRepo, categoryRepo, service.WithLogger(logger), service.WithLocker(locker))
	reminderSvc := service.NewReminderService(taskRepo, categoryRepo)

	if !cfg.APIEnabled() && !cfg.BotEnabled() {
		return errors.New("nothing to run: set HTTP_ADDR or TELEGRAM_TOKEN")
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if cfg.APIEnabled() {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewServer(taskSvc, categorySvc, userRepo, cfg.JWTSecret, logger).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http shutdown", "error", err)
			}
		}()
	}

	if cfg.BotEnabled() {
		telegramBot, err := bot.New(cfg.TelegramToken, userRepo, categorySvc, taskSvc, reminderSvc, time.Local, logger)
		if err != nil {
			return err
		}

		scheduler := service.NewSchedulerService(time.Local, logger)
		if cfg.ReportInterval > 0 {
			if _, err := scheduler.ScheduleInterval("reports", cfg.ReportInterval, telegramBot.SendDailyReports); err != nil {
				return err
			}
		}
		if cfg.ReportDailyAt != "" {
			if _, err := scheduler.ScheduleDaily("daily-report", cfg.ReportDailyAt, telegramBot.SendDailyReports); err != nil {
				return err
			}
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("scheduler started", "jobs", scheduler.Entries())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	wg.Wait()
	return nil
}
