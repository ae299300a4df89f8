package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-roster/api"
	"github.com/tcriess/lightspeed-roster/config"
	"github.com/tcriess/lightspeed-roster/globals"
	"github.com/tcriess/lightspeed-roster/persistence"
	"github.com/tcriess/lightspeed-roster/service"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		globals.AppLogger.Error("could not read configuration", "error", err)
		os.Exit(1)
	}

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		globals.AppLogger.Error("could not set up persistence", "error", err)
		os.Exit(1)
	}
	defer persister.Close()

	svc, err := service.NewService(globalConfig, persister)
	if err != nil {
		globals.AppLogger.Error("could not set up service", "error", err)
		os.Exit(1)
	}
	defer svc.Shutdown()

	if spec := globalConfig.RosterConfig.FillCronSpec; spec != "" {
		scheduler, err := service.NewScheduler(svc, spec)
		if err != nil {
			globals.AppLogger.Error("invalid fill cron spec", "spec", spec, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:    globalConfig.Listen,
		Handler: api.NewRouter(svc, globalConfig),
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		globals.AppLogger.Info("interrupted, shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			globals.AppLogger.Error("could not shut down", "error", err)
		}
	}()

	globals.AppLogger.Info("listening", "addr", srv.Addr)
	if *sslCert != "" && *sslKey != "" {
		err = srv.ListenAndServeTLS(*sslCert, *sslKey)
	} else {
		err = srv.ListenAndServe()
	}
	if err != http.ErrServerClosed {
		globals.AppLogger.Error("stopped listening", "error", err)
	}
}
