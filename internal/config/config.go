package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"yield-agreement-backend/pkg/id"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	GuardLocal = "local"
	GuardRedis = "redis"
)

type Config struct {
	AppPort string
	AppEnv  string

	DBDriver   string
	SQLitePath string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisPass string
	RedisDB   int

	IdempTTLSecs int

	// Caller ids allowed to create agreements and appoint the controller.
	AdminIDs []string
	// Caller ids allowed to record missed payments.
	KeeperIDs []string

	EarlyRepaymentRebateBps uint64

	// KYCRegistry enables the kyc_records registry. When false every
	// payer-initiated movement fails with a registry-not-configured error.
	KYCRegistry bool

	GuardBackend    string
	GuardTTLSecs    int
	EventStream     string
	KeeperIntervalS int
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getlist(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, id.Normalize(p))
		}
	}
	return out
}

// Load reads .env (when present) and then the process environment. Values
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	c := &Config{
		AppPort: getenv("APP_PORT", "8080"),
		AppEnv:  getenv("APP_ENV", "development"),

		DBDriver:   strings.ToLower(getenv("DB_DRIVER", DriverMySQL)),
		SQLitePath: getenv("SQLITE_PATH", "yield.db"),

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "yield"),
		MySQLUser: getenv("MYSQL_USER", "yield"),
		MySQLPass: getenv("MYSQL_PASS", "yield"),

		RedisAddr: getenv("REDIS_ADDR", "redis:6379"),
		RedisPass: os.Getenv("REDIS_PASSWORD"),
		RedisDB:   getint("REDIS_DB", 0),

		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),

		AdminIDs:  getlist("ADMIN_IDS"),
		KeeperIDs: getlist("KEEPER_IDS"),

		EarlyRepaymentRebateBps: 1000,
		KYCRegistry:             true,

		GuardBackend:    strings.ToLower(getenv("GUARD_BACKEND", GuardLocal)),
		GuardTTLSecs:    getint("GUARD_TTL_SECONDS", 30),
		EventStream:     getenv("EVENT_STREAM", "agreement-events"),
		KeeperIntervalS: getint("KEEPER_INTERVAL_SECONDS", 60),
	}
	if v := os.Getenv("EARLY_REPAYMENT_REBATE_BPS"); v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid EARLY_REPAYMENT_REBATE_BPS %q: %w", v, err)
		}
		c.EarlyRepaymentRebateBps = n
	}
	if v := os.Getenv("KYC_REGISTRY_ENABLED"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid KYC_REGISTRY_ENABLED %q: %w", v, err)
		}
		c.KYCRegistry = b
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.GuardBackend {
	case GuardLocal, GuardRedis:
	default:
		return fmt.Errorf("unsupported GUARD_BACKEND %q", c.GuardBackend)
	}
	if c.GuardTTLSecs <= 0 {
		return errors.New("GUARD_TTL_SECONDS must be positive")
	}
	if c.KeeperIntervalS <= 0 {
		return errors.New("KEEPER_INTERVAL_SECONDS must be positive")
	}
	if c.EarlyRepaymentRebateBps > 10000 {
		return fmt.Errorf("EARLY_REPAYMENT_REBATE_BPS %d exceeds 10000", c.EarlyRepaymentRebateBps)
	}
	for _, list := range [][]string{c.AdminIDs, c.KeeperIDs} {
		for _, v := range list {
			if !id.Valid(v) {
				return fmt.Errorf("invalid caller id %q in ADMIN_IDS/KEEPER_IDS", v)
			}
		}
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN is the data source for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	return c.MySQLDSN()
}
