// @title BBBAB Chatsync
// @version 0.2
// @description Доставка и синхронизация сообщений чата.

// @host localhost:8080
// @BasePath /api
// @query.collection.format multi
// @schemes http

package main

import (
	"os"

	"tush00nka/bbbab_chatsync/internal/app"
	"tush00nka/bbbab_chatsync/internal/config"
	"tush00nka/bbbab_chatsync/internal/pkg/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "")
		log.Fatal().Err(err).Msg("Config error")
	}

	logging.Setup(cfg.LogLevel, cfg.Environment)

	if err := app.Run(cfg); err != nil {
		log.Error().Err(err).Msg("Server stopped")
		os.Exit(1)
	}
}
