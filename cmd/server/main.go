package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"omset/backend/internal/analytics"
	"omset/backend/internal/config"
	"omset/backend/internal/httpapi"
	"omset/backend/internal/limiter"
	"omset/backend/internal/service"
	"omset/backend/internal/store"
	"omset/backend/internal/store/memory"
	pgstore "omset/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else if cfg.SeedDemoData {
		repo = memory.NewSeeded(time.Now().In(loc))
		log.Info().Msg("repository: in-memory (demo data)")
	} else {
		repo = memory.New()
		log.Info().Msg("repository: in-memory")
	}

	loginLimiter := limiter.Limiter(limiter.NewWindow(5, time.Minute))
	if cfg.RedisAddr != "" {
		redisLimiter := limiter.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "omset:login:", 5, time.Minute)
		if err := redisLimiter.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory login limiter")
			_ = redisLimiter.Close()
		} else {
			loginLimiter = redisLimiter
			closers = append(closers, redisLimiter.Close)
			log.Info().Msg("login limiter: redis")
		}
	} else {
		log.Info().Msg("login limiter: in-memory")
	}

	auth, err := httpapi.NewAuthManager(cfg.AuthSecret, cfg.TokenTTL(), cfg.AdminUsername, cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise auth")
	}

	svc := service.New(repo, analytics.NewEngine(loc))
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		LoginLimiter:  loginLimiter,
		APILimiter:    limiter.NewPerClient(cfg.APIRatePerSecond, cfg.APIRateBurst),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("timezone", loc.String()).Msg("omset backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AdminUsername == "" {
		return fmt.Errorf("ADMIN_USERNAME must not be empty")
	}
	if cfg.AdminPasswordHash != "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set")
	}
	if err := validatePasswordStrength(cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects short passwords, well-known ones, a single repeated
// character, and straight ascending or descending runs such as "12345678" or "hgfedcba".
func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("must be at least 8 characters")
	}

	known := map[string]bool{
		"password": true, "password1": true, "admin123": true, "admin1234": true,
		"12345678": true, "123456789": true, "qwertyui": true, "qwerty123": true,
		"11111111": true, "iloveyou": true, "changeme": true, "letmein1": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(password); i++ {
		diff := int(password[i]) - int(password[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential password not allowed")
	}

	return nil
}
