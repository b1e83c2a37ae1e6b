package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpch89/the5fire-Django/internal/common/database"
	"github.com/jpch89/the5fire-Django/internal/common/logger"
	"github.com/jpch89/the5fire-Django/internal/config"
	httpapi "github.com/jpch89/the5fire-Django/internal/http"
	"github.com/jpch89/the5fire-Django/internal/migrations"
	"github.com/jpch89/the5fire-Django/internal/repository"
	"github.com/jpch89/the5fire-Django/internal/service"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load(":8080")

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "student-sys")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var students repository.StudentsRepository = repository.NewMemoryStore()
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			if cfg.DBAutoMigrate {
				if err := migrations.Up(context.Background(), db); err != nil {
					log.Fatal("failed to apply migrations", zap.Error(err))
				}
			}
			students = repository.NewPostgresStudentsRepository(db)
			log.Info("DB enabled for student-sys")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory", zap.Error(err))
		}
	}

	router := httpapi.NewRouter(log)
	// 只有首页记录 process view
	router.Use(httpapi.NewRequestTimer(log, "/"))
	router.RegisterStudentRoutes(httpapi.NewStudentHandler(service.NewStudentService(students, log), log))

	srv := service.NewServer("student-sys", cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	if db != nil {
		_ = database.Close(db)
	}
}
