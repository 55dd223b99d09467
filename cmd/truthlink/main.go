package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/truthmd/truthlink/config"
	"github.com/truthmd/truthlink/internal/app"
	"github.com/truthmd/truthlink/internal/webserver"
)

var (
	configFile = flag.String("c", "/etc/truthlink.yml", "config file")
	showVer    = flag.Bool("v", false, "print version and exit")
	initDrop   = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println("truthlink", version)
		return
	}

	cfg := config.LoadConfig(*configFile)
	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "init failed:", err)
		os.Exit(1)
	}
	defer application.Release()

	if *initDrop {
		application.DropAll()
		if err := application.MigrateDB(true); err != nil {
			zap.S().Fatal(err)
		}
		zap.L().Info("database recreated")
		return
	}

	srv := webserver.New(cfg, application.SessionManager(), application.Hub(), application.AuditLog())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("server exited", zap.Error(err))
		os.Exit(1)
	}
	zap.L().Info("shutdown complete")
}
