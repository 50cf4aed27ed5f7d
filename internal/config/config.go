package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL     string `env:"DATABASE_URL,required,notEmpty"`
	DBMigrate       bool   `env:"DB_MIGRATE" envDefault:"false"`
	DBSeedFreePlan  bool   `env:"DB_SEED_FREE_PLAN" envDefault:"false"`
	DBMaxConns      int    `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns      int    `env:"DB_MIN_CONNS" envDefault:"1"`
	StoreTimeoutSec int    `env:"STORE_TIMEOUT_SECONDS" envDefault:"5"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"postdeck"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	SignupOnLogin bool `env:"SIGNUP_ON_LOGIN" envDefault:"true"`
	BcryptCost    int  `env:"BCRYPT_COST" envDefault:"10"`

	GoogleClientID  string `env:"GOOGLE_CLIENT_ID"`
	GoogleIssuerURL string `env:"GOOGLE_ISSUER_URL" envDefault:"https://accounts.google.com"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
