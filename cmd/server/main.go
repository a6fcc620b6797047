package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"oncotrack-api/internal/config"
	"oncotrack-api/internal/dashboard"
	"oncotrack-api/internal/handler"
	"oncotrack-api/internal/middleware"
	"oncotrack-api/internal/scheduling"
	"oncotrack-api/internal/store"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.Env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel)
	}

	// database
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse database url")
	}
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer pool.Close()
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping")
	}
	log.Info().Msg("connected to postgres")

	// run migrations
	if migration, err := os.ReadFile("db/migrations/001_init.sql"); err != nil {
		log.Warn().Err(err).Msg("migration file not found, skipping")
	} else if _, err := pool.Exec(context.Background(), string(migration)); err != nil {
		log.Warn().Err(err).Msg("migration")
	} else {
		log.Info().Msg("migration applied")
	}

	st := store.New(pool)

	// prune expired refresh tokens hourly
	go func() {
		for {
			time.Sleep(time.Hour)
			if err := st.DeleteExpiredRefreshTokens(context.Background(), time.Now()); err != nil {
				log.Warn().Err(err).Msg("refresh token cleanup")
			}
		}
	}()

	sched := scheduling.New(st, st, st, st, cfg.WindowStartHour, cfg.WindowEndHour,
		log.With().Str("component", "scheduling").Logger())
	dash := dashboard.New(st, st, st, st, st, st)
	h := handler.New(st, sched, dash, cfg.JWTSecret,
		log.With().Str("component", "handler").Logger())

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	h.RegisterRoutes(e, rl)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
