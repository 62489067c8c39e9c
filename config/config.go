package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server      Server
	Database    Database
	Redis       Redis
	Session     Session
	Certificate Certificate
	RabbitMQ    RabbitMQ
	RateLimit   RateLimit
	Log         Log
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Redis struct {
	Addr     string
	Password string `json:"-"`
	DB       int
}

type Session struct {
	Store         string        // "redis" or "memory"
	GracePeriod   time.Duration // kept in the store past the deadline so the sweep can auto-submit
	SweepInterval time.Duration
}

type Certificate struct {
	StorageDir      string
	VerifyBaseURL   string
	DefaultTemplate string
	FontFile        string // optional UTF-8 TTF; without it text is limited to cp1252
}

type RabbitMQ struct {
	URL      string `json:"-"`
	Exchange string
}

type RateLimit struct {
	VerifyPerSecond float64
	VerifyBurst     int
}

type Log struct {
	Level string
	File  string
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("SESSION_STORE", "redis")
	viper.SetDefault("SESSION_GRACE_PERIOD", "10m")
	viper.SetDefault("SESSION_SWEEP_INTERVAL", "30s")
	viper.SetDefault("CERTIFICATE_STORAGE_DIR", "./storage/certificates")
	viper.SetDefault("CERTIFICATE_VERIFY_BASE_URL", "http://localhost:8080/api/v1/certificates/verify")
	viper.SetDefault("CERTIFICATE_DEFAULT_TEMPLATE", "classic")
	viper.SetDefault("RABBITMQ_EXCHANGE", "certificate.events")
	viper.SetDefault("VERIFY_RATE_LIMIT", 5.0)
	viper.SetDefault("VERIFY_RATE_BURST", 10)
	viper.SetDefault("LOG_LEVEL", "info")

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")

	config.Session.Store = viper.GetString("SESSION_STORE")
	config.Session.GracePeriod = viper.GetDuration("SESSION_GRACE_PERIOD")
	config.Session.SweepInterval = viper.GetDuration("SESSION_SWEEP_INTERVAL")

	config.Certificate.StorageDir = viper.GetString("CERTIFICATE_STORAGE_DIR")
	config.Certificate.VerifyBaseURL = viper.GetString("CERTIFICATE_VERIFY_BASE_URL")
	config.Certificate.DefaultTemplate = viper.GetString("CERTIFICATE_DEFAULT_TEMPLATE")
	config.Certificate.FontFile = viper.GetString("CERTIFICATE_FONT_FILE")

	config.RabbitMQ.URL = viper.GetString("RABBITMQ_URL")
	config.RabbitMQ.Exchange = viper.GetString("RABBITMQ_EXCHANGE")

	config.RateLimit.VerifyPerSecond = viper.GetFloat64("VERIFY_RATE_LIMIT")
	config.RateLimit.VerifyBurst = viper.GetInt("VERIFY_RATE_BURST")

	config.Log.Level = viper.GetString("LOG_LEVEL")
	config.Log.File = viper.GetString("LOG_FILE")

	log.Info().Str("port", config.Server.Port).Str("sessionStore", config.Session.Store).Str("dbHost", config.Database.Host).Msg("Config loaded")
	return &config, nil

}
