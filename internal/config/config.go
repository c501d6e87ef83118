package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and sizes.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	DBUser          string // database username
	DBPass          string // database password (optional)
	DBHost          string // database host address
	DBPort          string // database port number
	DBName          string // database name
	JWTSecret       string // secret used to sign QR ticket tokens
	AccessTTLMin    int    // access token time-to-live in minutes
	RefreshTTLDays  int    // refresh token time-to-live in days
	HoldTTLMin      int    // how long a pending seat hold lives, in minutes
	ReaperPeriodSec int    // seconds between expired-hold sweeps
	BusQueueSize    int    // per-subscriber event buffer size
	VNPayTMNCode    string // VNPay merchant terminal code
	VNPayHashSecret string // VNPay HMAC-SHA512 secret
	VNPayPaymentURL string // VNPay hosted checkout URL
	VNPayReturnURL  string // where VNPay redirects customers back to
	RabbitURL       string // AMQP broker URL (optional)
	SMTPHost        string // SMTP relay for confirmation mail (optional)
	SMTPPort        string
	SMTPUser        string
	SMTPPass        string
	SMTPFrom        string
	CORSOrigins     string // comma-separated allowed origins
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),   // environment (dev/test/prod)
		Port:            must("APP_PORT"),  // port to bind the HTTP server
		DBUser:          must("DB_USER"),   // database user
		DBPass:          os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:          must("DB_HOST"),   // database host
		DBPort:          must("DB_PORT"),   // database port
		DBName:          must("DB_NAME"),   // database name
		JWTSecret:       must("JWT_SECRET"), // secret used for signing QR tokens
		AccessTTLMin:    envInt("ACCESS_TOKEN_TTL_MIN", 60),
		RefreshTTLDays:  envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		HoldTTLMin:      envInt("HOLD_TTL_MIN", 10),
		ReaperPeriodSec: envInt("REAPER_PERIOD_SEC", 30),
		BusQueueSize:    envInt("BUS_QUEUE_SIZE", 64),
		VNPayTMNCode:    must("VNPAY_TMN_CODE"),
		VNPayHashSecret: must("VNPAY_HASH_SECRET"),
		VNPayPaymentURL: must("VNPAY_PAYMENT_URL"),
		VNPayReturnURL:  must("VNPAY_RETURN_URL"),
		RabbitURL:       os.Getenv("RABBITMQ_URL"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        os.Getenv("SMTP_PORT"),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPass:        os.Getenv("SMTP_PASS"),
		SMTPFrom:        os.Getenv("SMTP_FROM"),
		CORSOrigins:     envStr("CORS_ALLOW_ORIGINS", "*"),
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

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
