package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/predictfi/gomarket/internal/bootstrap"
	"github.com/predictfi/gomarket/internal/controlplane/server"
	"github.com/predictfi/gomarket/pkg/config"
	"github.com/predictfi/gomarket/pkg/logger"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rt, err := bootstrap.Build(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	srv, err := server.New(server.Config{DBPath: cfg.Server.DBPath}, rt.Orchestrator,
		logger.WithField("component", "controlplane"))
	if err != nil {
		log.Fatalf("init server: %v", err)
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("control plane listening on %s (owner %s)", cfg.Server.ListenAddr, rt.Owner.Hex())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)

	fmt.Println("server stopped")
}
