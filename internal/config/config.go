package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL    string
	ServerAddr     string
	AdminUserID    int64
	AdminContact   string
	AdminTokenHash string

	// Tiered commission rule: flat fee up to the threshold, percentage above.
	CommissionThreshold decimal.Decimal
	CommissionFlatFee   decimal.Decimal
	CommissionPctRate   decimal.Decimal

	// Optional settlement rate override seeded at startup; zero leaves
	// per-order rates in effect until the admin sets one.
	SettlementRate decimal.Decimal

	// Zero disables reservation expiry.
	ReservationTTL time.Duration
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" && os.Getenv("POSTGRES_HOST") != "" {
		user := getenv("POSTGRES_USER", "otc_market")
		pass := getenv("POSTGRES_PASSWORD", "otc_market_pass")
		db := getenv("POSTGRES_DB", "otc_market")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	adminID, err := strconv.ParseInt(getenv("ADMIN_USER_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_USER_ID: %w", err)
	}

	return &Config{
		DatabaseURL:         dsn,
		ServerAddr:          getenv("SERVER_ADDR", "0.0.0.0:8080"),
		AdminUserID:         adminID,
		AdminContact:        getenv("ADMIN_CONTACT", ""),
		AdminTokenHash:      getenv("ADMIN_API_TOKEN_HASH", ""),
		CommissionThreshold: parseDecimal(getenv("COMMISSION_THRESHOLD", "100"), decimal.NewFromInt(100)),
		CommissionFlatFee:   parseDecimal(getenv("COMMISSION_FLAT_FEE", "3"), decimal.NewFromInt(3)),
		CommissionPctRate:   parseDecimal(getenv("COMMISSION_PCT_RATE", "0.04"), decimal.RequireFromString("0.04")),
		SettlementRate:      parseDecimal(getenv("SETTLEMENT_RATE", "0"), decimal.Zero),
		ReservationTTL:      parseDuration(getenv("RESERVATION_TTL", "0"), 0),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" || val == "0" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseDecimal(val string, def decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(val)
	if err != nil {
		return def
	}
	return d
}
