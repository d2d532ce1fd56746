// cmd/api/main.go
package main

import (
	"html/template"
	"net/http"
	"os"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/andrewlind/stockdash/cache"
	"github.com/andrewlind/stockdash/internal/config"
	"github.com/andrewlind/stockdash/internal/http/routes"
	"github.com/andrewlind/stockdash/internal/stocks"
	"github.com/andrewlind/stockdash/marketdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config error")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("addr", cfg.Addr).Msg("starting stockdash api")

	// Cache store, shared by every cached operation
	store, err := cache.New(cfg.CacheDir, cache.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("cache init error")
	}

	// Provider client + cached service layer
	var clientOpts []marketdata.Option
	if cfg.ProviderURL != "" {
		clientOpts = append(clientOpts, marketdata.WithBaseURL(cfg.ProviderURL))
	}
	client := marketdata.New(clientOpts...)
	service := stocks.NewService(store, client, stocks.TTLs{
		History:    cfg.HistoryTTL,
		Profile:    cfg.ProfileTTL,
		Financials: cfg.FinancialsTTL,
	}, logger)

	// Sessions
	sess := scs.New()
	sess.Lifetime = 12 * time.Hour
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode

	// Templates
	tmpl := template.Must(template.New("").ParseGlob("web/templates/*.tmpl"))

	// Router / server
	s := routes.New(routes.ServerOptions{
		Sess:   sess,
		Tmpl:   tmpl,
		Stocks: service,
		Cache:  store,
		Cfg:    cfg,
		Log:    logger,
	})
	h := hlog.NewHandler(logger)(s.Router)

	srv := &http.Server{Addr: cfg.Addr, Handler: sess.LoadAndSave(h)}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
