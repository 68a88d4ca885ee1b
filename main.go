package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/marcus-crane/explorer/artwork"
	"github.com/marcus-crane/explorer/config"
	"github.com/marcus-crane/explorer/events"
	"github.com/marcus-crane/explorer/gallery"
	"github.com/marcus-crane/explorer/migrations"
	"github.com/marcus-crane/explorer/notify"
	"github.com/marcus-crane/explorer/render"
	"github.com/marcus-crane/explorer/session"
	"github.com/marcus-crane/explorer/token"
	"github.com/marcus-crane/explorer/twitch"
	"github.com/marcus-crane/explorer/utils"
)

const (
	memoryStoreSize = 4096
	paletteSize     = 2048

	// unmountGrace rides out an EventSource reconnect before the view's
	// gallery is thrown away.
	unmountGrace = 5 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(),
	})))

	var store session.Store
	var sweeper session.Sweeper
	switch cfg.Explorer.SessionBackend {
	case config.BackendSQL:
		sqlStore, err := session.Open(cfg.Database.Driver, cfg.Database.Path)
		if err != nil {
			slog.Error("Failed to open session database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sqlStore.Close()
		if err := sqlStore.ApplyMigrations(migrations.GetMigrations()); err != nil {
			slog.Error("Failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = sqlStore
		sweeper = sqlStore
	default:
		store = session.NewMemoryStore(memoryStoreSize, cfg.SessionLifetime())
	}

	client := twitch.NewClient(cfg.Twitch.ClientId, cfg.Twitch.ClientSecret)
	client.BaseURL = cfg.Twitch.APIURL
	client.AuthURL = cfg.Twitch.AuthURL

	tokens := token.NewProvider(store, client)
	if cfg.PushoverEnabled() {
		tokens.WithAlerter(notify.NewPushover(cfg.Pushover.Token, cfg.Pushover.Recipient))
	}

	var palette *artwork.Palette
	if cfg.Explorer.ArtworkPalette {
		palette, err = artwork.NewPalette(utils.NewHTTPClient(10*time.Second), paletteSize)
		if err != nil {
			slog.Error("Failed to set up artwork palette", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// A nil *Palette must not end up inside a non-nil interface
	var colours render.Colours
	if palette != nil {
		colours = palette
	}
	renderer, err := render.New(colours)
	if err != nil {
		slog.Error("Failed to parse templates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hub := events.New()
	pub := &publisher{hub: hub, renderer: renderer, palette: palette}

	registry := gallery.NewRegistry(func(viewID string) *gallery.Controller {
		return gallery.NewController(viewID, tokens, client, cfg.Explorer.PageSize).WithObserver(pub)
	}, tokens)
	pub.hasNext = func(viewID string) bool {
		c, ok := registry.Get(viewID)
		return ok && c.HasNextPage()
	}

	hub.OnUnmount(func(viewID string) {
		time.AfterFunc(unmountGrace, func() {
			if hub.Subscribers(viewID) > 0 {
				return
			}
			slog.Debug("Releasing unmounted view", slog.String("view", viewID))
			if err := registry.Release(context.Background(), viewID); err != nil {
				slog.Error("Failed to release view",
					slog.String("error", err.Error()),
					slog.String("view", viewID),
				)
			}
			hub.Close(viewID)
		})
	})

	jobScheduler, err := SetupInBackground(cfg, registry, hub, sweeper)
	if err != nil {
		slog.Error("Failed to set up background jobs", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if utils.GetEnv("BACKGROUND_JOBS_ENABLED", "true") == "true" {
		jobScheduler.Start()
		slog.Info("Background jobs have started up in the background")
	} else {
		slog.Info("Background jobs are disabled")
	}

	router := RegisterRoutes(http.NewServeMux(), cfg.Origins(), registry, hub, renderer, pub)

	slog.Info("Explorer is running", slog.String("addr", cfg.Explorer.Addr))

	if err := http.ListenAndServe(cfg.Explorer.Addr, router); err != nil {
		slog.Error("Server stopped", slog.String("error", err.Error()))
		jobScheduler.Shutdown()
		os.Exit(1)
	}
}
