// Package main School Server 入口（学校后台：用户与图书借出标记）
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

	"librigo/internal/config"
	"librigo/internal/school"
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

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Component: "school"})

	log.Printf("Starting School Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

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

	h := school.NewHandler(store,
		school.WithLogger(logger),
		school.WithExposeDetail(cfg.IsDevelopment()),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.School.Port,
		Handler:      h.Router(cfg.School.CORSOrigin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("School Server listening on :%s", cfg.School.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
