// Copyright (c) 2022 NTT Communications Corporation
//
// This software is released under the MIT License.
// see https://github.com/nttcom/l2info/blob/main/LICENSE

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nttcom/l2info/internal/config"
	"github.com/nttcom/l2info/internal/pkg/layer2"
	"github.com/nttcom/l2info/internal/pkg/version"
	"github.com/nttcom/l2info/pkg/logger"
	"github.com/nttcom/l2info/pkg/server"
)

type Flags struct {
	ConfigFile string
}

func main() {
	f := new(Flags)
	flag.StringVar(&f.ConfigFile, "f", "l2infod.yaml", "Specify a configuration file")
	flag.Parse()

	c, err := config.ReadConfigFile(f.ConfigFile)
	if err != nil {
		log.Panic(err)
	}
	if err := os.MkdirAll(c.Global.Log.Path, 0755); err != nil {
		log.Panic(err)
	}
	fp, err := os.OpenFile(filepath.Join(c.Global.Log.Path, c.Global.Log.Name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Panic(err)
	}
	defer fp.Close()

	lg := logger.LogInit(fp, c.Global.Log.Debug)
	defer func() {
		_ = lg.Sync()
	}()
	zap.ReplaceGlobals(lg)
	lg.Info("Start l2infod", zap.String("version", version.Version()), zap.String("interface", c.Global.Dlep.Interface))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, lg); err != nil {
		lg.Error("l2infod stopped", zap.Error(err))
		return
	}
	lg.Info("l2infod stopped")
}

func run(ctx context.Context, c config.Config, lg *zap.Logger) error {
	db := layer2.NewDB(layer2.WithLogger(lg))
	metrics := server.NewMetrics()
	dlepServer := server.NewServer(c.Global.Dlep, db, metrics, lg)
	api := server.NewAPIServer(db, dlepServer, metrics, lg)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dlepServer.Serve(ctx)
	})
	g.Go(func() error {
		return api.Serve(ctx, c.Global.API.Address, c.Global.API.Port)
	})
	if m := c.Global.Metrics; m.Port != "" {
		g.Go(func() error {
			return server.ServeMetrics(ctx, metrics, m.Address, m.Port, lg)
		})
	}
	return g.Wait()
}
