package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ehealth-platform/identity-service/internal/config"
	"github.com/ehealth-platform/identity-service/internal/database"
	"github.com/ehealth-platform/identity-service/internal/handler"
	"github.com/ehealth-platform/identity-service/internal/queue"
	"github.com/ehealth-platform/identity-service/internal/repository"
	"github.com/ehealth-platform/identity-service/internal/router"
	"github.com/ehealth-platform/identity-service/internal/service"
	"github.com/ehealth-platform/identity-service/internal/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	rlCfg := config.LoadRateLimitConfig()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	verifications := repository.NewVerificationRepo(db)
	profiles := repository.NewProfileRepo(db)

	codec := utils.TokenCodec{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}
	policy := service.Policy{
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutDuration:  cfg.LockoutDuration,
	}

	auth := &service.AuthService{
		Users:         users,
		Tokens:        tokens,
		Verifications: verifications,
		Profiles:      profiles,
		Codec:         codec,
		Policy:        policy,
		Verifier:      service.NewGoogleVerifier(cfg.GoogleClientID),
		Mailer:        service.EmailPublisher{},
		BcryptCost:    cfg.BcryptCost,
	}

	authHandler := handler.NewAuthHandler(cfg, auth)
	profileHandler := handler.NewProfileHandler(users, profiles)
	adminHandler := handler.NewAdminHandler(profiles)

	// Background email consumer; reconnects on broker failure.
	go func() {
		if err := queue.StartVerificationConsumer(cfg.FrontendURL); err != nil {
			log.Printf("mail-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, codec, users, rlCfg, rdb)
	router.RegisterProfile(e, profileHandler, codec, users)
	router.RegisterAdmin(e, adminHandler, codec, users)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
