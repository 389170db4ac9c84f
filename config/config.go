package config

import (
	"encoding/hex"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Field-level encryption key for PII at rest: 32 bytes, hex encoded.
	// The process refuses to start without it.
	PIIKey string `mapstructure:"PII_ENCRYPTION_KEY"`

	// Payment windows.
	PaymentWindowMin int `mapstructure:"PAYMENT_WINDOW_MIN"`
	BookingWindowHrs int `mapstructure:"BOOKING_WINDOW_HRS"`

	// VNPay.
	VNPayBaseURL   string `mapstructure:"VNPAY_BASE_URL"`
	VNPayTmnCode   string `mapstructure:"VNPAY_TMN_CODE"`
	VNPaySecret    string `mapstructure:"VNPAY_HASH_SECRET"`
	VNPayReturnURL string `mapstructure:"VNPAY_RETURN_URL"`

	// MoMo.
	MoMoBaseURL     string `mapstructure:"MOMO_BASE_URL"`
	MoMoPartnerCode string `mapstructure:"MOMO_PARTNER_CODE"`
	MoMoAccessKey   string `mapstructure:"MOMO_ACCESS_KEY"`
	MoMoSecret      string `mapstructure:"MOMO_SECRET_KEY"`
	MoMoRedirectURL string `mapstructure:"MOMO_REDIRECT_URL"`
	MoMoIPNURL      string `mapstructure:"MOMO_IPN_URL"`

	// ZaloPay. Key1 signs outbound create requests, Key2 verifies callbacks.
	ZaloPayBaseURL     string `mapstructure:"ZALOPAY_BASE_URL"`
	ZaloPayAppID       string `mapstructure:"ZALOPAY_APP_ID"`
	ZaloPayKey1        string `mapstructure:"ZALOPAY_KEY1"`
	ZaloPayKey2        string `mapstructure:"ZALOPAY_KEY2"`
	ZaloPayCallbackURL string `mapstructure:"ZALOPAY_CALLBACK_URL"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "skybook")
	viper.SetDefault("PAYMENT_WINDOW_MIN", 15)
	viper.SetDefault("BOOKING_WINDOW_HRS", 24)
	viper.SetDefault("VNPAY_BASE_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	viper.SetDefault("MOMO_BASE_URL", "https://test-payment.momo.vn/v2/gateway/api/create")
	viper.SetDefault("ZALOPAY_BASE_URL", "https://sb-openapi.zalopay.vn/v2/create")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Encrypted passenger data is unreadable without the key, and a short
	// key would silently produce garbage ciphertext, so both are fatal.
	key, err := hex.DecodeString(AppConfig.PIIKey)
	if err != nil || len(key) != 32 {
		log.Fatalf("PII_ENCRYPTION_KEY must be 32 bytes hex encoded (64 chars), got %d chars", len(AppConfig.PIIKey))
	}
}

// PaymentWindow returns how long a payment stays payable after creation.
func PaymentWindow() time.Duration {
	return time.Duration(AppConfig.PaymentWindowMin) * time.Minute
}

// BookingWindow returns how long an unpaid booking remains retryable.
func BookingWindow() time.Duration {
	return time.Duration(AppConfig.BookingWindowHrs) * time.Hour
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
