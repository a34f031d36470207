package main

import (
	"flag"
	"log"
	"os"

	"TradeDash/internal/di"
	"TradeDash/pkg/config"
)

var configPath = flag.String("config", "config/config.yaml", "config file path")

func main() {
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting dashboard cache env=%s bot=%s", cfg.Environment, cfg.Feeds.BotID)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Blocks until SIGINT/SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
