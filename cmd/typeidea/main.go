package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpch89/the5fire-Django/internal/admin"
	"github.com/jpch89/the5fire-Django/internal/common/database"
	"github.com/jpch89/the5fire-Django/internal/common/logger"
	redisx "github.com/jpch89/the5fire-Django/internal/common/redis"
	"github.com/jpch89/the5fire-Django/internal/config"
	httpapi "github.com/jpch89/the5fire-Django/internal/http"
	"github.com/jpch89/the5fire-Django/internal/migrations"
	"github.com/jpch89/the5fire-Django/internal/permission"
	"github.com/jpch89/the5fire-Django/internal/repository"
	"github.com/jpch89/the5fire-Django/internal/service"
	"github.com/jpch89/the5fire-Django/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load(":8000")

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "typeidea")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// DB 不可用时使用内存 repo
	repos := repository.NewMemoryRepositories()
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			if cfg.DBAutoMigrate {
				if err := migrations.Up(context.Background(), db); err != nil {
					log.Fatal("failed to apply migrations", zap.Error(err))
				}
			}
			repos = repository.NewPostgresRepositories(db)
			log.Info("DB enabled for typeidea")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory", zap.Error(err))
		}
	}

	// Redis 不可用时会话和操作记录保存在进程内
	var kv store.KV = store.NewMemoryKV()
	var actions store.ActionLog = store.NewMemoryActionLog()
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		c := redisx.NewRedisClient(&cfg.Redis)
		if err := redisx.Ping(context.Background(), c); err == nil {
			redisClient = c
			kv = store.NewRedisKV(c)
			actions = store.NewRedisActionLog(c, cfg.AdminLog.Stream)
			log.Info("Redis enabled for typeidea", zap.String("addr", cfg.Redis.Addr))
		} else {
			_ = c.Close()
			log.Warn("Redis enabled but ping failed, falling back to memory", zap.Error(err))
		}
	}

	authSvc := service.NewAuthService(repos.Users, store.NewSessions(kv, cfg.Session.TTL), log)
	if cfg.Seed.Enabled {
		if err := authSvc.SeedAdmin(context.Background(), cfg.Seed.Username, cfg.Seed.Password); err != nil {
			log.Error("failed to seed admin user", zap.Error(err))
		}
	}

	site := admin.DefaultSite()
	perms := permission.NewClient(cfg.PermService.BaseURL, cfg.PermService.Timeout, log)
	adminSvc := service.NewAdminService(site, repos, perms, actions, log)

	router := httpapi.NewRouter(log)
	router.Use(httpapi.NewRequestTimer(log))
	router.RegisterAdminRoutes(
		httpapi.NewAuthHandler(authSvc, cfg.Session.TTL, log),
		httpapi.NewAdminHandler(adminSvc, site, log),
	)

	srv := service.NewServer("typeidea", cfg.HTTP.Addr, router, log)

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
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = database.Close(db)
	}
}
