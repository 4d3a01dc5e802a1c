package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/api"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/config"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/events"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/rsvp"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/session"
	"github.com/RajaKunalPandit1/Event-Management-Platform/internal/web"
)

// flagConfig holds CLI flag values; flags override the config file.
type flagConfig struct {
	configPath string
	listen     string
	baseURL    string
	debug      bool
}

func main() {
	flags := parseFlags()

	if flags.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("config", flags.configPath).Msg("eventfront starting")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", flags.configPath).Msg("failed to load config")
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.baseURL != "" {
		conf.BaseURL = flags.baseURL
		conf.Normalize()
	}

	log.Info().
		Str("base_url", conf.BaseURL).
		Str("listen", conf.Listen).
		Str("refresh", conf.RefreshCron).
		Msg("effective config")

	// Wire the state modules. The session store is the client's token
	// source, so it exists before the client and learns about it after.
	sessions := session.New(conf.SessionPathOrDefault(flags.configPath))
	client := api.NewClient(conf.BaseURL, time.Duration(conf.RequestTimeoutSeconds)*time.Second, sessions)
	sessions.SetAuthenticator(client)

	if err := sessions.Restore(); err != nil {
		log.Fatal().Err(err).Msg("failed to restore session")
	}

	rsvps := rsvp.NewCache(client)
	list := events.NewFetcher(client)

	server, err := web.NewServer(conf, sessions, client, rsvps, list)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build frontend server")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Background refresh keeps the dashboards warm between visits.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		refreshCtx, done := context.WithTimeout(ctx, 30*time.Second)
		defer done()
		server.RefreshCaches(refreshCtx)
	}); err != nil {
		log.Fatal().Err(err).Str("refresh", conf.RefreshCron).Msg("invalid refresh schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", "http://"+conf.Listen).Msg("frontend listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("signal received, shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
	log.Info().Msg("eventfront exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath(), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.baseURL, "base-url", "", "Backend API base URL (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging with console output")

	flag.Parse()

	return cfg
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "eventfront", "config.yaml")
	}
	return "./eventfront.yaml"
}
