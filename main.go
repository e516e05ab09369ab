package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mbolis/civic-survey/app"
	"github.com/mbolis/civic-survey/config"
	"github.com/mbolis/civic-survey/database"
	"github.com/mbolis/civic-survey/httpx"
	"github.com/mbolis/civic-survey/log"
	"github.com/mbolis/civic-survey/routes"
)

func main() {
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal("main.config: ", err)
	}
	err = log.Configure(cfg.LogFormat)
	if err != nil {
		log.Fatal("main.log: ", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open: ", err)
	}
	defer db.Close()

	_, err = database.EnsureGlobalAdmin(context.Background(), db, cfg.BootstrapEmail, cfg.BootstrapPassword)
	if err != nil {
		log.Fatal("main.db.bootstrap_admin: ", err)
	}

	bearerServer := httpx.NewBearerServer(db, cfg)
	handler := routes.Wire(app.New(db, bearerServer, cfg))

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server: ", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
