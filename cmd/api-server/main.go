// Package main API Server 入口
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"librigo/internal/apiserver/auth"
	"librigo/internal/apiserver/response"
	"librigo/internal/apiserver/server"
	"librigo/internal/catalog"
	"librigo/internal/config"
	"librigo/internal/lifecycle"
	"librigo/internal/shared/cache"
	rediscache "librigo/internal/shared/cache/redis"
	"librigo/internal/shared/eventbus"
	redisbus "librigo/internal/shared/eventbus/redis"
	"librigo/internal/shared/objstore"
	"librigo/internal/shared/storage/dbutil"
	"librigo/internal/shared/storage/repository"
	"librigo/pkg/logging"
)

func main() {
	configDir := flag.String("config", "", "配置文件目录（默认按 APP_ENV 查找）")
	flag.Parse()
	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}

	// 加载配置（自动加载 .env，按 APP_ENV 选择 YAML）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	newLogger := func(component string) *logging.Logger {
		return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Component: component})
	}
	logger := newLogger("http")
	response.SetExposeDetail(cfg.IsDevelopment())
	response.SetLogger(newLogger("response"))

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 初始化数据库（启动时自动迁移）
	driver, err := dbutil.ParseDriverType(cfg.DatabaseDriver)
	if err != nil {
		log.Fatalf("Invalid database driver: %v", err)
	}
	store, err := repository.Open(driver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	log.Printf("Connected to %s", driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := auth.EnsureAdminUser(ctx, store, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	// Redis 可选：登录限流与跨实例事件推送；未配置时退化为进程内实现
	var (
		limiter cache.LoginLimiter = cache.NewNoOpLimiter()
		bus     eventbus.Bus       = eventbus.NewLocalBus()
	)
	if cfg.RedisURL != "" {
		redisStore, err := rediscache.NewStoreFromURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		limiter = redisStore
		bus = redisbus.NewBusFromClient(redisStore.Client())
		log.Println("Connected to Redis")
	} else {
		log.Println("Redis not configured, using in-process event bus")
	}
	defer bus.Close()

	metrics := server.NewMetrics("librigo")

	engine := lifecycle.New(store,
		lifecycle.WithPublisher(bus),
		lifecycle.WithMetrics(metrics),
		lifecycle.WithLogger(newLogger("lifecycle")),
	)

	// MinIO 可选：封面上传
	catalogOpts := []catalog.Option{catalog.WithLogger(newLogger("catalog"))}
	if cfg.MinIO.Enabled() {
		covers, err := objstore.NewClient(cfg.MinIO)
		if err != nil {
			log.Fatalf("Failed to create MinIO client: %v", err)
		}
		bucketCtx, bucketCancel := context.WithTimeout(ctx, 10*time.Second)
		err = covers.EnsureBucket(bucketCtx)
		bucketCancel()
		if err != nil {
			log.Fatalf("Failed to prepare MinIO bucket: %v", err)
		}
		catalogOpts = append(catalogOpts, catalog.WithCoverStore(covers))
		log.Printf("Cover storage: bucket %s", covers.Bucket())
	}
	catalogSvc := catalog.New(store, catalogOpts...)

	authSvc := auth.NewService(store,
		auth.Config{JWTSecret: cfg.Auth.JWTSecret, TokenTTL: cfg.Auth.TokenTTL},
		auth.WithLoginLimiter(limiter, auth.LimitConfig{MaxAttempts: cfg.Auth.LoginMaxAttempts, Window: cfg.Auth.LoginWindow}),
	)

	h := server.NewHandler(server.Deps{
		DB:      store,
		Auth:    authSvc,
		Engine:  engine,
		Catalog: catalogSvc,
		Events:  bus,
		Metrics: metrics,
		Logger:  logger,
		Options: server.Options{CORSOrigin: cfg.Server.CORSOrigin, RequestTimeout: cfg.Server.RequestTimeout},
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     h.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		ErrorLog:    newServerErrorLog(logger),
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
