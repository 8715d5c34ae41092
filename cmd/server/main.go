package main

import (
	"net/http"
	"os"

	"github.com/winmix/analytics/internal/api"
	"github.com/winmix/analytics/internal/config"
	"github.com/winmix/analytics/internal/logging"
	"github.com/winmix/analytics/pkg/store"
)

func main() {
	log := logging.NewLogger("server")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	db, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		log.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	stores, err := store.NewStores(db)
	if err != nil {
		log.WithError(err).Error("failed to initialize stores")
		os.Exit(1)
	}

	handler := api.NewHandler(cfg, stores, log)
	log.WithField("addr", cfg.ListenAddr).Info("starting analytics server")
	if err := http.ListenAndServe(cfg.ListenAddr, handler.Router()); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}
