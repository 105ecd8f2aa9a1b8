package main

import (
	"flag"
	"net/http"
	"os"

	"geminiclient/internal/api"
	"geminiclient/internal/config"
	"geminiclient/internal/db"
	"geminiclient/internal/gemini"
	"geminiclient/internal/logging"
	"geminiclient/internal/server"
	"geminiclient/internal/store"

	"github.com/sirupsen/logrus"
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	// --- Database Initialization ---
	database, err := db.InitDB(cfg.Server.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB(database)

	// --- Dependencies ---
	client, err := gemini.New(gemini.Options{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		Proxy:      cfg.Gemini.Proxy,
		HTTPClient: &http.Client{Timeout: cfg.Gemini.Timeout},
		Log:        log,
	})
	if err != nil {
		log.Fatal(err)
	}
	geminiAPI := api.NewGeminiAPI(client, store.NewExchangeStore(database), log)

	// --- HTTP Server ---
	srv := server.New(cfg.Server.Host, cfg.Server.Port, server.NewRouter(geminiAPI, log), log)

	log.WithFields(logrus.Fields{
		"model": client.Model(),
		"host":  client.Host(),
	}).Info("Gemini client configured")
	srv.Run()
}
