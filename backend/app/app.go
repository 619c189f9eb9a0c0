package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/ZhengJun-AI/bili-audio/backend/api/handlers"
	"github.com/ZhengJun-AI/bili-audio/backend/config"
	"github.com/ZhengJun-AI/bili-audio/backend/logging"
	"github.com/ZhengJun-AI/bili-audio/backend/router"
	"github.com/ZhengJun-AI/bili-audio/backend/service/bilibili"
	"github.com/ZhengJun-AI/bili-audio/backend/store"
)

type App struct {
	cfg        config.Config
	cfgManager *config.Manager
	store      *store.Store
	server     *http.Server
	routes     []router.Route
	logger     *logging.Manager
}

func New(cfgManager *config.Manager) (*App, error) {
	if cfgManager == nil {
		return nil, fmt.Errorf("config manager is required")
	}
	cfg := cfgManager.Current()
	log.Printf("[config] using config file: %s", cfg.ConfigFile)
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	storeDB, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	bilibiliSvc := bilibili.New(storeDB, cfg)
	loggerMgr, err := logging.New(cfg)
	if err != nil {
		storeDB.Close()
		return nil, err
	}

	deps := &router.Dependencies{
		Config:    cfg,
		ConfigMgr: cfgManager,
		Store:     storeDB,
		Bilibili:  bilibiliSvc,
	}
	apiHandler, routes := router.Build(deps)

	app := &App{
		cfg:        cfg,
		cfgManager: cfgManager,
		store:      storeDB,
		routes:     routes,
		logger:     loggerMgr,
	}
	cfgManager.AddListener(func(newCfg config.Config) {
		log.Printf("[config] hot reload applied from %s", newCfg.ConfigFile)
		if err := loggerMgr.Update(newCfg); err != nil {
			log.Printf("[config][warn] update logger failed: %v", err)
		}
	})
	app.server = &http.Server{
		Addr:              cfg.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		Handler:           apiHandler,
	}
	return app, nil
}

// Routes exposes the bound route table, mainly for startup logging.
func (a *App) Routes() []router.Route {
	return a.routes
}

func (a *App) Run() error {
	a.cfgManager.StartWatching()
	log.Printf("bili-audio listening on %s", a.cfg.ListenAddr)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.cfgManager.StopWatching()
	shutdownErr := a.server.Shutdown(ctx)
	closeErr := a.store.Close()
	if a.logger != nil {
		_ = a.logger.Close()
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	return closeErr
}
