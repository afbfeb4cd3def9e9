package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis config
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Service credential required by the cron-invoked job endpoints
	ServiceToken string

	// Email provider: "resend", "ses" or "log"
	EmailProvider string
	ResendAPIKey  string
	FromEmail     string
	FromName      string

	// AWS services
	AWSRegion   string
	SNSTopicARN string // push fan-out topic, optional

	// Kajabi course-platform API
	KajabiBaseURL  string
	KajabiClientID string
	KajabiSecret   string
	ContactDelay   time.Duration // pause between auth user creations during contact import
	MastermindTag  string

	// Hosted auth provider admin API
	AuthBaseURL    string
	AuthServiceKey string
	AuthRedirectTo string

	// Internal tick intervals; zero disables the in-process loop and the
	// job endpoints become the only trigger.
	GeneratorInterval  time.Duration
	DispatcherInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		// Local postgres defaults
		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "beacon",
		DBPassword: "",
		DBName:     "beacon",
		DBSSLMode:  "disable",

		// Redis defaults
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		EmailProvider: "log",
		FromEmail:     "coach@beacon.local",
		FromName:      "Beacon Coaching",

		AWSRegion: "us-east-1",

		KajabiBaseURL: "https://api.kajabi.com",
		ContactDelay:  500 * time.Millisecond,
		MastermindTag: "mastermind",
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if token := os.Getenv("SERVICE_TOKEN"); token != "" {
		cfg.ServiceToken = token
	}

	if provider := os.Getenv("EMAIL_PROVIDER"); provider != "" {
		cfg.EmailProvider = provider
	}

	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		cfg.ResendAPIKey = key
		if cfg.EmailProvider == "log" {
			cfg.EmailProvider = "resend"
		}
	}

	if from := os.Getenv("FROM_EMAIL"); from != "" {
		cfg.FromEmail = from
	}

	if name := os.Getenv("FROM_NAME"); name != "" {
		cfg.FromName = name
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if arn := os.Getenv("SNS_TOPIC_ARN"); arn != "" {
		cfg.SNSTopicARN = arn
	}

	// Kajabi config
	if base := os.Getenv("KAJABI_BASE_URL"); base != "" {
		cfg.KajabiBaseURL = base
	}

	if id := os.Getenv("KAJABI_CLIENT_ID"); id != "" {
		cfg.KajabiClientID = id
	}

	if secret := os.Getenv("KAJABI_CLIENT_SECRET"); secret != "" {
		cfg.KajabiSecret = secret
	}

	if delay := os.Getenv("CONTACT_CREATE_DELAY_MS"); delay != "" {
		d, err := strconv.Atoi(delay)
		if err != nil {
			return nil, fmt.Errorf("invalid CONTACT_CREATE_DELAY_MS: %w", err)
		}
		cfg.ContactDelay = time.Duration(d) * time.Millisecond
	}

	if tag := os.Getenv("MASTERMIND_TAG"); tag != "" {
		cfg.MastermindTag = tag
	}

	// Hosted auth config
	if base := os.Getenv("AUTH_BASE_URL"); base != "" {
		cfg.AuthBaseURL = base
	}

	if key := os.Getenv("AUTH_SERVICE_KEY"); key != "" {
		cfg.AuthServiceKey = key
	}

	if redirect := os.Getenv("AUTH_REDIRECT_TO"); redirect != "" {
		cfg.AuthRedirectTo = redirect
	}

	if interval := os.Getenv("GENERATOR_INTERVAL_SECONDS"); interval != "" {
		s, err := strconv.Atoi(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid GENERATOR_INTERVAL_SECONDS: %w", err)
		}
		cfg.GeneratorInterval = time.Duration(s) * time.Second
	}

	if interval := os.Getenv("DISPATCHER_INTERVAL_SECONDS"); interval != "" {
		s, err := strconv.Atoi(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCHER_INTERVAL_SECONDS: %w", err)
		}
		cfg.DispatcherInterval = time.Duration(s) * time.Second
	}

	return cfg, nil
}
