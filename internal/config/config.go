package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Token TTLs are split into days and
// seconds: production typically sets days, tests set a few seconds.
type Config struct {
	Env     string // application environment (e.g. "dev", "prod", "test")
	Port    string // HTTP port to listen on
	AppName string // used in outgoing email subjects
	BaseURL string // public base URL, embedded in email links

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	SecretKey  string // secret used to sign tokens
	BcryptCost int    // bcrypt cost for password and token hashing

	AuthTokenDays        int // session token TTL days
	AuthTokenSeconds     int // session token TTL seconds
	PasswordTokenDays    int // password-reset token TTL days
	PasswordTokenSeconds int
	EmailTokenDays       int // email-verification token TTL days
	EmailTokenSeconds    int

	PostsPerPage int // default page size for admin lists
	MaxPerPage   int // hard cap on per_page

	GitHubClientID       string
	GitHubClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string

	MailSender           string // From address for outgoing mail
	PostmarkServerToken  string
	PostmarkAccountToken string
}

// Load reads configuration values from environment variables and
// returns a Config.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
// TTLs, pagination and the social/mail credentials have defaults so
// development setups only need the core variables.
func Load() Config {
	return Config{
		Env:     must("APP_ENV"),
		Port:    must("APP_PORT"),
		AppName: envStr("APP_NAME", "user-account-service"),
		BaseURL: envStr("APP_BASE_URL", "http://localhost:8080"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		SecretKey:  must("SECRET_KEY"),
		BcryptCost: mustInt("BCRYPT_COST"),

		AuthTokenDays:        envInt("TOKEN_EXPIRATION_DAYS", 30),
		AuthTokenSeconds:     envInt("TOKEN_EXPIRATION_SECONDS", 0),
		PasswordTokenDays:    envInt("TOKEN_PASSWORD_EXPIRATION_DAYS", 1),
		PasswordTokenSeconds: envInt("TOKEN_PASSWORD_EXPIRATION_SECONDS", 0),
		EmailTokenDays:       envInt("TOKEN_EMAIL_EXPIRATION_DAYS", 1),
		EmailTokenSeconds:    envInt("TOKEN_EMAIL_EXPIRATION_SECONDS", 0),

		PostsPerPage: envInt("POSTS_PER_PAGE", 10),
		MaxPerPage:   envInt("MAX_PER_PAGE", 100),

		GitHubClientID:       os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret:   os.Getenv("GITHUB_CLIENT_SECRET"),
		FacebookClientID:     os.Getenv("FACEBOOK_CLIENT_ID"),
		FacebookClientSecret: os.Getenv("FACEBOOK_CLIENT_SECRET"),

		MailSender:           envStr("MAIL_SENDER", "no-reply@localhost"),
		PostmarkServerToken:  os.Getenv("POSTMARK_SERVER_TOKEN"),
		PostmarkAccountToken: os.Getenv("POSTMARK_ACCOUNT_TOKEN"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
