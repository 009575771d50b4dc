package api

import (
	"context"
	"net/http"
	"relic-services/blob"
	"relic-services/ledger"
	"relic-services/reliclog"
	"relic-services/types"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// API server
type API struct {
	Log          *zerolog.Logger
	Routes       chi.Router
	Addr         string
	Conn         *pgxpool.Pool
	Ledger       *ledger.Ledger
	Blobs        blob.Store
	HTMLSanitize *bluemonday.Policy
	Config       *types.Config
}

// NewAPI registers routes
func NewAPI(
	log *zerolog.Logger,
	conn *pgxpool.Pool,
	l *ledger.Ledger,
	blobs blob.Store,
	htmlSanitize *bluemonday.Policy,
	config *types.Config,
) *API {
	api := &API{
		Log:          reliclog.NamedLogger(log, "api"),
		Conn:         conn,
		Ledger:       l,
		Blobs:        blobs,
		HTMLSanitize: htmlSanitize,
		Config:       config,
		Routes:       chi.NewRouter(),
		Addr:         config.APIAddr,
	}

	api.Routes.Use(middleware.RequestID)
	api.Routes.Use(middleware.RealIP)
	api.Routes.Use(cors.New(cors.Options{
		AllowedOrigins: []string{config.MarketplaceHostURL},
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}).Handler)

	api.Routes.Handle("/metrics", promhttp.Handler())
	api.Routes.Route("/api", func(r chi.Router) {
		r.Get("/check", api.WithError(api.Check))

		r.Post("/auth/connect", api.WithError(api.AuthConnect))

		r.Get("/assets/{id}", api.WithError(api.AssetGet))
		r.Get("/users/{address}/assets", api.WithError(api.AssetsByUser))
		r.Get("/listings", api.WithError(api.ListingsAll))
		r.Get("/users/{address}/balance", api.WithError(api.BalanceGet))
		r.Get("/files/{id}", api.WithError(api.FileGet))

		r.Post("/assets", api.WithError(WithAddress(api, api.AssetCreate)))
		r.Post("/assets/{id}/transfer", api.WithError(WithAddress(api, api.AssetTransfer)))
		r.Put("/assets/{id}/listing", api.WithError(WithAddress(api, api.ListingCreate)))
		r.Delete("/assets/{id}/listing", api.WithError(WithAddress(api, api.ListingCancel)))
		r.Post("/assets/{id}/purchase", api.WithError(WithAddress(api, api.Purchase)))
		r.Post("/withdraw", api.WithError(WithAddress(api, api.Withdraw)))
		r.Get("/withdrawals", api.WithError(WithAddress(api, api.WithdrawalsList)))
		r.Get("/transactions", api.WithError(WithAddress(api, api.TransactionsList)))
	})

	return api
}

// Run starts the API server and blocks until ctx is cancelled
func (api *API) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         api.Addr,
		Handler:      api.Routes,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			api.Log.Warn().Err(err).Msg("server shutdown")
		}
	}()

	api.Log.Info().Str("addr", api.Addr).Msg("starting API server")
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
