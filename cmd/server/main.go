package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/openlearn/auth-service/internal/auth"
	"github.com/openlearn/auth-service/internal/config"
	"github.com/openlearn/auth-service/internal/database"
	"github.com/openlearn/auth-service/internal/handler"
	"github.com/openlearn/auth-service/internal/oauth"
	"github.com/openlearn/auth-service/internal/queue"
	"github.com/openlearn/auth-service/internal/repository"
	"github.com/openlearn/auth-service/internal/router"
	"github.com/openlearn/auth-service/internal/service"
	"github.com/openlearn/auth-service/internal/token"
	"github.com/openlearn/auth-service/internal/validate"
)

// tokenSweepInterval is how often revoked/expired token rows are purged.
// The sweep is storage hygiene only; any interval is correct.
const tokenSweepInterval = time.Hour

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "auth").Logger()
	if !cfg.IsProd() {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unreachable, rate limiting disabled")
	}

	codec := token.NewCodec(token.Config{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})

	mail := service.NewMailPublisher(cfg.RabbitURL, log)
	svc := auth.NewService(
		repository.NewUserRepo(db),
		repository.NewTokenRepo(db),
		repository.NewActionTokenRepo(db),
		mail,
		codec,
		validate.NewEmailPolicy(),
		validate.NewPasswordPolicy(),
		cfg.BcryptCost,
		cfg.FrontendURL,
		log,
	)

	google := oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	h := handler.NewAuthHandler(svc, cfg, google, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	router.Register(e, h, codec, svc, config.LoadRateLimitConfig(), rdb)

	// Background workers: mail delivery and token-row hygiene.
	go queue.StartMailConsumer(cfg.RabbitURL, queue.LogSender{Log: log}, log)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepTokens(sweepCtx, svc, log)

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil {
			log.Info().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func sweepTokens(ctx context.Context, svc *auth.Service, log zerolog.Logger) {
	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.DeleteExpiredTokens(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("token sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("rows", n).Msg("token sweep removed rows")
			}
		}
	}
}
