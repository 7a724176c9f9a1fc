package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"tris-server/internal/logging"
	"tris-server/internal/server"
)

func main() {
	cfg := server.LoadConfig()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.FilePath = cfg.LogFile
	log := logging.New(logCfg)

	var archive *server.MatchArchive
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		a, err := server.NewMatchArchive(ctx, cfg.DatabaseURL, log)
		cancel()
		if err != nil {
			// The archive is best-effort; the server still runs without it.
			log.Warn().Err(err).Msg("match archive unavailable")
		} else {
			archive = a
		}
	}

	srv := server.NewServer(cfg, log, archive)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
	if archive != nil {
		archive.Close()
	}
	log.Info().Msg("graceful shutdown complete")
}
