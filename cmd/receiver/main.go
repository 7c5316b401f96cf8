package main

import (
	"tvcollector/config"
	"tvcollector/internal/webhook"
	"tvcollector/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	// run webhook receiver
	if err := webhook.Start(cfg, log); err != nil {
		log.Fatal("receiver failed", zap.Error(err))
	}
}
