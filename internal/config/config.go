package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultTimezone        = "America/Mexico_City"
	defaultOrderPrefix     = "LP"
	defaultCurrency        = "MXN"
	defaultGatewayTimeout  = 15 * time.Second
	defaultPendingOrderTTL = 24 * time.Hour
	defaultNotifyTopic     = "orders.payment.confirmed"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string
	AppPort    string
	AppEnv     string
	Timezone   string

	// Prefix of the human-facing order reference, e.g. "LP" in LP-20250101-0001.
	OrderPrefix string

	MercadoPagoAccessToken   string
	MercadoPagoWebhookSecret string
	Currency                 string
	FrontendURL              string
	BackendURL               string
	GatewayTimeout           time.Duration

	PendingOrderTTL time.Duration

	RedisAddr         string
	KafkaBrokers      []string
	NotificationTopic string

	JWTSecret string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:                   os.Getenv("DB_HOST"),
		DBUser:                   os.Getenv("DB_USER"),
		DBPassword:               os.Getenv("DB_PASSWORD"),
		DBName:                   os.Getenv("DB_NAME"),
		DBPort:                   os.Getenv("DB_PORT"),
		DBSSLMode:                getenv("DB_SSLMODE", "disable"),
		AppPort:                  os.Getenv("APP_PORT"),
		AppEnv:                   os.Getenv("APP_ENV"),
		Timezone:                 getenv("APP_TIMEZONE", defaultTimezone),
		OrderPrefix:              getenv("ORDER_PREFIX", defaultOrderPrefix),
		MercadoPagoAccessToken:   os.Getenv("MERCADOPAGO_ACCESS_TOKEN"),
		MercadoPagoWebhookSecret: os.Getenv("MERCADOPAGO_WEBHOOK_SECRET"),
		Currency:                 getenv("MERCADOPAGO_CURRENCY", defaultCurrency),
		FrontendURL:              strings.TrimRight(os.Getenv("FRONTEND_URL"), "/"),
		BackendURL:               strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		GatewayTimeout:           getSeconds("GATEWAY_TIMEOUT_SECONDS", defaultGatewayTimeout),
		PendingOrderTTL:          getHours("PENDING_ORDER_TTL_HOURS", defaultPendingOrderTTL),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		KafkaBrokers:             splitList(os.Getenv("KAFKA_BROKERS")),
		NotificationTopic:        getenv("NOTIFICATION_TOPIC", defaultNotifyTopic),
		JWTSecret:                os.Getenv("SECRET_KEY"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// Location resolves the configured business timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getSeconds(key string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func getHours(key string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Hour
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
