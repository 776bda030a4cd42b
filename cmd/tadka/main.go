package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"tadka/internal/app"
	"tadka/internal/config"
	"tadka/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("TADKA_CONFIG"), "path to a JSON or YAML config file")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalf("Config load error: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация БД, RabbitMQ и публикатора
	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("Startup error: %v", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		logger.Log.Errorf("Run error: %v", err)
	}
}
