package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jigtrack/cache"
	"jigtrack/config"
	"jigtrack/notify"
	"jigtrack/repository"
	"jigtrack/scheduler"
	"jigtrack/server"
	"jigtrack/storage"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

var (
	configPath   string
	httpPort     string
	postgresHost string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the config file")
	flag.StringVar(&httpPort, "http-port", "", "HTTP web server port (overrides config)")
	flag.StringVar(&postgresHost, "postgres-host", "", "DB host address (overrides config DSN)")
}

func main() {
	// Load Config
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Reading config: %v", err)
	}
	if httpPort != "" {
		cfg.HTTPPort = httpPort
	}
	if postgresHost != "" {
		cfg.PostgresDSN = "postgresql://postgres:postgrespassword@" + postgresHost + "/postgres"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration data: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	loc := cfg.Location()

	// Initialize Badger cache
	cacheSvc := cache.Open(cfg.CachePath, cfg.CacheTTL(), logger)
	defer cacheSvc.Close()

	// Connect PostgreSQL DB
	repo := repository.NewRepository(cacheSvc, logger, loc)
	logger.Info("Connecting to database", "dsn", cfg.PostgresDSN)
	if err := repo.ConnectDB(cfg.PostgresDSN); err != nil {
		log.Fatalf("Connecting to database: %v", err)
	}
	if err := repo.Migrate(); err != nil {
		log.Fatalf("Running migrations: %v", err)
	}

	// Report file storage
	store, err := storage.NewManager(repo.DB(), logger, cfg.ReportsDir, cfg.ArchiveDir, loc)
	if err != nil {
		log.Fatalf("Initializing report storage: %v", err)
	}
	var notifier repository.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, logger)
	}
	repo.SetHooks(store, notifier)

	// Retention scheduler
	sched := scheduler.New(repo, store, cfg, logger)
	sched.Start()
	defer sched.Stop()

	// Start Web Server
	webserver := server.NewWebServer(cfg.HTTPPort, logger, repo, store, cfg)
	if err := webserver.Start(); err != nil {
		log.Fatalf("Starting HTTP server: %v", err)
	}

	// Wait for interrupt signal to gracefully shut down the server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	// Create deadline to wait for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := webserver.Shutdown(ctx); err != nil {
		logger.Error("Shutting down HTTP web server", "err", err)
	}
	logger.Info("HTTP web server gracefully stopped")
}
