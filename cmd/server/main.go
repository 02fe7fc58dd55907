package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/config"
	"github.com/iliyamo/user-account-service/internal/database"
	"github.com/iliyamo/user-account-service/internal/handler"
	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/mailer"
	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/provider"
	"github.com/iliyamo/user-account-service/internal/queue"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/router"
	"github.com/iliyamo/user-account-service/internal/token"
	"github.com/iliyamo/user-account-service/internal/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	groups := repository.NewGroupRepo(db)
	hasher := utils.Hasher{Cost: cfg.BcryptCost}
	codecs := handler.Codecs{
		Auth:     token.NewCodec(cfg.SecretKey, token.PurposeAuth, cfg.AuthTokenDays, cfg.AuthTokenSeconds),
		Password: token.NewCodec(cfg.SecretKey, token.PurposePassword, cfg.PasswordTokenDays, cfg.PasswordTokenSeconds),
		Email:    token.NewCodec(cfg.SecretKey, token.PurposeEmail, cfg.EmailTokenDays, cfg.EmailTokenSeconds),
	}

	mail := mailer.NewQueueNotifier(cfg.AppName, cfg.BaseURL)
	if cfg.PostmarkServerToken != "" {
		sender := mailer.NewPostmarkSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.MailSender)
		go func() {
			if err := queue.StartEmailConsumer(sender); err != nil {
				log.Printf("email consumer stopped: %v", err)
			}
		}()
	} else {
		log.Println("POSTMARK_SERVER_TOKEN not set, email consumer disabled")
	}

	auth := handler.NewAuthHandler(cfg, users, hasher, codecs, mail)
	github := handler.NewSocialHandler(users, codecs,
		provider.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.BaseURL+"/v1/auth/github/login/callback"))
	facebook := handler.NewSocialHandler(users, codecs,
		provider.NewFacebook(cfg.FacebookClientID, cfg.FacebookClientSecret, cfg.BaseURL+"/v1/auth/facebook/login/callback"))
	self := handler.NewUserHandler(users)
	adminUsers := handler.NewAdminUserHandler(cfg, users, hasher)
	adminGroups := handler.NewAdminGroupHandler(groups, users)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.EchoHandler

	// Rate limiting degrades to a no-op when Redis is unreachable.
	var limit echo.MiddlewareFunc
	rlCfg := config.LoadRateLimitConfig()
	if rlCfg.Enabled {
		if rdb := config.NewRedisClient(); rdb != nil {
			limit = middleware.RateLimit(rlCfg, rdb)
		} else {
			log.Println("redis unavailable, rate limiting disabled")
		}
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, users, codecs.Auth, limit)
	router.RegisterSocial(e, auth, github, facebook, users, codecs.Auth)
	router.RegisterUser(e, self, users, codecs.Auth)
	router.RegisterAdmin(e, adminUsers, adminGroups, users, codecs.Auth)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
