package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/vetrai/auth-service/internal/config"
	"github.com/vetrai/auth-service/internal/handlers"
	"github.com/vetrai/auth-service/internal/models"
	"github.com/vetrai/auth-service/internal/services"
	"github.com/vetrai/auth-service/internal/utils"
	"github.com/vetrai/auth-service/pkg/logger"
)

// appServices holds the wired service graph.
type appServices struct {
	authService *services.AuthService
	userService *services.UserService
	authHandler *handlers.AuthHandler
	userHandler *handlers.UserHandler
	audit       *services.AuditDispatcher
	sweeper     *services.Sweeper
	redisClient *redis.Client
}

// bootstrap initializes database, audit pipeline, token store, cache and
// services. Lifetime is owned here and released in shutdown — no package
// carries its own global store handle.
func bootstrap(cfg *config.Config) *appServices {
	if err := utils.SetBcryptCost(cfg.Auth.BcryptCost); err != nil {
		logger.Fatalf("Invalid bcrypt cost %d", cfg.Auth.BcryptCost)
	}

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db := models.GetDB()

	audit := services.NewAuditDispatcher(services.NewDBSink(db), 256)

	var cache services.TokenCache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, validation cache disabled")
			redisClient = nil
		} else {
			cache = services.NewRedisTokenCache(redisClient, cfg.Redis.CacheTTL)
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("validation cache enabled")
		}
	}

	store := services.NewTokenStore(db, cfg.Auth.StoreTimeout)
	authService := services.NewAuthService(db, store, cache, audit, &cfg.Auth)
	userService := services.NewUserService(db, authService, audit)

	if err := userService.SeedSuperAdminIfNotExists(context.Background(), cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword); err != nil {
		logger.Warn().Err(err).Msg("failed to seed super admin")
	}

	sweeper := services.NewSweeper(store)
	if err := sweeper.Start(cfg.Auth.SweepSchedule); err != nil {
		logger.Fatalf("Invalid sweep schedule %q: %v", cfg.Auth.SweepSchedule, err)
	}

	return &appServices{
		authService: authService,
		userService: userService,
		authHandler: handlers.NewAuthHandler(authService, userService),
		userHandler: handlers.NewUserHandler(userService),
		audit:       audit,
		sweeper:     sweeper,
		redisClient: redisClient,
	}
}

// shutdown stops background work and drains the audit buffer.
func (s *appServices) shutdown() {
	s.sweeper.Stop()
	s.audit.Close()
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	logger.Info().Msg("background services stopped")
}
