package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/mbolis/civic-survey/analytics"
	"github.com/mbolis/civic-survey/config"
	"github.com/mbolis/civic-survey/database"
)

// App bundles what the HTTP handlers share.
type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	Store     *database.Store
	Analytics *analytics.Service
}

func New(db *sql.DB, bearerServer *oauth.BearerServer, cfg config.Config) App {
	store := database.NewStore(db)
	return App{
		DB:           db,
		BearerServer: bearerServer,
		Config:       cfg,
		Store:        store,
		Analytics:    analytics.NewService(store),
	}
}
