package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"beacon/internal/api"
	"beacon/internal/config"
	"beacon/internal/core"
	"beacon/internal/domain/repository"
	"beacon/internal/infrastructure/obsclient"
	"beacon/internal/logger"
)

func main() {
	if err := logger.Initialize(os.Getenv("BEACON_LOG_JSON") == "true"); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Logger

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	pg, err := repository.NewPostgresStore(cfg.PostgresURL, log)
	if err != nil {
		log.Fatalw("Failed to connect to postgres", "error", err)
	}
	eventRecorder := repository.NewPostgresEventRecorder(pg.DB())
	if err := eventRecorder.EnsureSchema(context.Background()); err != nil {
		log.Fatalw("Failed to ensure event schema", "error", err)
	}

	// The observation store is read either directly from Postgres or
	// through the application's data-access API when one is configured.
	var store core.ObservationStore = pg
	if cfg.ObsStoreURL != "" {
		store = obsclient.New(cfg.ObsStoreURL, 30*time.Second)
		log.Infow("Using HTTP observation store", "url", cfg.ObsStoreURL)
	}

	var sites core.SiteContextProvider
	if cfg.OverpassURL != "" {
		sites = repository.NewOverpassRepository(cfg.OverpassURL, 30*time.Second)
	}

	service := core.NewService(store, eventRecorder, sites, cfg, log)
	handler := api.NewHandler(service, cfg, log)

	router := mux.NewRouter()
	handler.Register(router)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      cors.Default().Handler(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	log.Infow("Starting beacon engine", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalw("Server stopped", "error", err)
	}
}
