package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os/signal"
	"syscall"

	"github.com/bark-labs/offerbot/internal/catalog"
	"github.com/bark-labs/offerbot/internal/config"
	"github.com/bark-labs/offerbot/internal/identity"
	"github.com/bark-labs/offerbot/internal/imagery"
	"github.com/bark-labs/offerbot/internal/loyalty"
	"github.com/bark-labs/offerbot/internal/promo"
	"github.com/bark-labs/offerbot/internal/server"
	"github.com/bark-labs/offerbot/internal/service"
	"github.com/bark-labs/offerbot/internal/session"
	"github.com/bark-labs/offerbot/internal/storage/bolt"
	"github.com/bark-labs/offerbot/internal/telegram"
	"github.com/bark-labs/offerbot/internal/workflow"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bolt.New(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if n, err := catalog.Import(ctx, store, cfg.Storage.OffersFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("import offers: %v", err)
		}
		log.Printf("offers file %s not found, using stored catalog", cfg.Storage.OffersFile)
	} else {
		log.Printf("imported %d offers from %s", n, cfg.Storage.OffersFile)
	}
	offers, err := catalog.Load(ctx, store)
	if err != nil {
		log.Fatalf("load offers: %v", err)
	}

	maintenanceSvc := service.NewMaintenanceService(store)
	if err := maintenanceSvc.Init(ctx, cfg.Maintenance.Enabled, cfg.Maintenance.Since); err != nil {
		log.Fatalf("init maintenance: %v", err)
	}

	sessions := session.NewManager(cfg.Loyalty.RequestTimeout, nil)
	loyaltyClient, err := loyalty.New(cfg, sessions)
	if err != nil {
		log.Fatalf("init loyalty client: %v", err)
	}

	images, err := imagery.NewCache(cfg.Storage.ImageCacheDir, loyaltyClient)
	if err != nil {
		log.Fatalf("init image cache: %v", err)
	}
	overlay, err := imagery.LoadOverlay(cfg.Assets.OverlayImage)
	if err != nil {
		log.Fatalf("load overlay: %v", err)
	}
	templates := config.NewTemplates(cfg.Templates.Dir)

	api, err := telegram.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	messenger := telegram.NewMessenger(api)

	flow := workflow.New(workflow.Options{
		Catalog:       offers,
		Redeemer:      loyaltyClient,
		Composer:      imagery.NewComposer(images, overlay),
		Templates:     templates,
		Messenger:     messenger,
		HeaderImage:   cfg.Assets.HeaderImage,
		RedeemTimeout: cfg.Workflow.RedeemTimeout,
	})

	userSvc := service.NewUserService(store)
	broadcastSvc := service.NewBroadcastService(store, userSvc, messenger)
	logSvc := service.NewBroadcastLogService(store)
	authSvc := service.NewAuthService(cfg)

	seed, err := identity.NewSeed()
	if err != nil {
		log.Fatalf("seed promocodes: %v", err)
	}
	dispatcher := telegram.NewDispatcher(telegram.Options{
		Config:      cfg,
		BotID:       api.Self.ID,
		Messenger:   messenger,
		Templates:   templates,
		Workflow:    flow,
		Users:       userSvc,
		Broadcaster: broadcastSvc,
		Maintenance: maintenanceSvc,
		Promocodes:  promo.NewGenerator(seed),
	})
	bot := telegram.NewBot(api, messenger, dispatcher, cfg.Telegram.PollTimeout)

	srv := server.New(cfg, server.Deps{
		Catalog:     offers,
		Users:       userSvc,
		Broadcasts:  broadcastSvc,
		Logs:        logSvc,
		Maintenance: maintenanceSvc,
		Auth:        authSvc,
		Updates:     bot,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("server stopped: %v", err)
			stop()
		}
	}()

	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		if cfg.Telegram.WebhookURL != "" {
			if err := bot.RegisterWebhook(cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				log.Fatalf("register webhook: %v", err)
			}
		}
		log.Printf("serving webhook on %s", cfg.HTTP.Addr)
		<-ctx.Done()
	default:
		log.Printf("polling for updates, admin api on %s", cfg.HTTP.Addr)
		bot.Poll(ctx)
	}

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	bot.Wait()
}
