package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"postdeck/internal/config"
	"postdeck/internal/db"
	"postdeck/internal/email"
	apihttp "postdeck/internal/http"
	"postdeck/internal/logging"
	"postdeck/internal/oauth"
	"postdeck/internal/repository"
	"postdeck/internal/service"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DBMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}
	if cfg.DBSeedFreePlan {
		if err := db.SeedFreePlan(ctx, pool); err != nil {
			logger.Fatal("db seed", zap.Error(err))
		}
	}

	userRepo := repository.NewPgUserRepository(pool)
	profileRepo := repository.NewPgProfileRepository(pool)
	planRepo := repository.NewPgPlanRepository(pool)
	historyRepo := repository.NewPgPlanHistoryRepository(pool)
	identityRepo := repository.NewPgIdentityRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var tokenStore service.RefreshTokenStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory refresh tokens", zap.Error(err))
		} else {
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	sessions := service.NewSessionIssuer(
		cfg.JWTSecret,
		cfg.JWTIssuer,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	var verifier oauth.Verifier
	if cfg.GoogleClientID != "" {
		// go-oidc reusa este contexto para refrescar las JWKS; no debe cancelarse tras el discovery.
		oidcCtx := oidc.ClientContext(ctx, &http.Client{Timeout: 10 * time.Second})
		v, err := oauth.NewOIDCVerifier(oidcCtx, []oauth.ProviderConfig{
			{Name: "google", IssuerURL: cfg.GoogleIssuerURL, ClientID: cfg.GoogleClientID},
		})
		if err != nil {
			logger.Warn("oidc provider discovery failed, oauth disabled", zap.Error(err))
		} else {
			verifier = v
			logger.Info("oauth providers enabled", zap.Strings("providers", v.Providers()))
		}
	}

	opts := service.DefaultAuthOptions()
	opts.SignupOnLogin = cfg.SignupOnLogin
	opts.StoreTimeout = time.Duration(cfg.StoreTimeoutSec) * time.Second
	authSvc := service.NewAuthService(
		logger,
		userRepo,
		profileRepo,
		planRepo,
		identityRepo,
		service.NewBcryptCipher(cfg.BcryptCost),
		emailSender,
		opts,
	)

	authHandler := apihttp.NewAuthHandler(logger, authSvc, verifier, sessions)
	profileHandler := apihttp.NewProfileHandler(logger, profileRepo, planRepo, historyRepo)
	router := apihttp.NewRouter(logger, authHandler, profileHandler, sessions, func(ctx context.Context) error {
		return db.Ping(ctx, pool)
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	authSvc.Wait()
}
