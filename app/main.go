package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tmthyln/iris/app/api"
	"github.com/tmthyln/iris/app/archive"
	"github.com/tmthyln/iris/app/blob"
	"github.com/tmthyln/iris/app/cfg"
	"github.com/tmthyln/iris/app/database"
	"github.com/tmthyln/iris/app/feed"
	"github.com/tmthyln/iris/app/queue"
	"github.com/tmthyln/iris/app/subscription"
	"github.com/tmthyln/iris/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Iris", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	feeds := database.NewFeedRepository(db)
	sources := database.NewSourceRepository(db)
	files := database.NewFileRepository(db)
	items := database.NewItemRepository(db)
	search := database.NewSearchRepository(db)

	blobs, err := blob.NewStore(appCfg.CacheDir)
	if err != nil {
		slog.Error("Failed to create cache directory", "path", appCfg.CacheDir, "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}

	wmLogger := watermill.NewSlogLogger(slog.Default())
	pubSub := tasks.NewPubSub(wmLogger)
	defer pubSub.Close()

	publisher := tasks.NewPublisher(pubSub)
	ingestor := tasks.NewIngestor(feeds, sources, files, items, search, blobs,
		feed.NewFetcher(httpClient, appCfg.UserAgent), feed.NewParser(), publisher)
	orchestrator := tasks.NewOrchestrator(ingestor, feed.NewContentExtractor(),
		archive.NewCDXClient(httpClient, appCfg.UserAgent), httpClient, appCfg.UserAgent)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		slog.Error("Failed to create task router", "error", err)
		os.Exit(1)
	}
	orchestrator.Register(router, pubSub)

	routerCtx, cancelRouter := context.WithCancel(context.Background())
	defer cancelRouter()
	go func() {
		if err := router.Run(routerCtx); err != nil {
			slog.Error("Task router stopped", "error", err)
		}
	}()
	<-router.Running()

	scheduler := tasks.NewScheduler(feeds, publisher)
	scheduler.Start()
	defer scheduler.Stop()

	go seedSubscriptions(appCfg.FeedsDir, sources, feeds, ingestor, publisher)

	apiHandler := api.NewHandler(feeds, sources, files, items, search,
		queue.New(db), ingestor, publisher)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler, router, pub/sub, and database close via defers.
	slog.Info("Shutdown complete")
}

// seedSubscriptions registers feeds declared in the feeds directory. Known
// sources get a refresh task; new ones are ingested from scratch.
func seedSubscriptions(dir string, sources database.SourceRepository,
	feeds database.FeedRepository, ingestor *tasks.Ingestor, publisher *tasks.Publisher) {
	loader := subscription.NewLoader(dir)
	subscriptions, err := loader.LoadAll()
	if err != nil {
		slog.Error("Failed to load subscription files", "dir", dir, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	slog.Info("Seeding subscriptions", "count", len(subscriptions))

	for _, sub := range subscriptions {
		source, err := sources.GetSource(sub.URL)
		if err != nil {
			slog.Error("Failed to look up subscription source", "url", sub.URL, "error", err)
			continue
		}

		if source != nil {
			if err := publisher.Publish(tasks.TopicRefreshFeed, tasks.RefreshFeedTask{FeedGUID: source.ReferencedFeed}); err != nil {
				slog.Warn("Failed to schedule refresh for subscription", "url", sub.URL, "error", err)
			}
			continue
		}

		fd, _, err := ingestor.AddFeed(context.Background(), sub.URL)
		if err != nil {
			slog.Warn("Failed to ingest subscription", "url", sub.URL, "error", err)
			continue
		}
		if fd == nil {
			continue
		}

		if sub.Alias != "" {
			if err := feeds.UpdateAlias(fd.GUID, sub.Alias); err != nil {
				slog.Warn("Failed to set subscription alias", "feed", fd.GUID, "error", err)
			}
		}
		if len(sub.Categories) > 0 {
			if err := feeds.UpdateCategories(fd.GUID, sub.Categories); err != nil {
				slog.Warn("Failed to set subscription categories", "feed", fd.GUID, "error", err)
			}
		}

		slog.Info("Subscribed to feed", "feed", fd.GUID, "url", sub.URL)
	}
}
