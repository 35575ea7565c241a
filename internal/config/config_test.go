package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var adminID = strings.Repeat("a", 32)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "DB_DRIVER", "GUARD_BACKEND", "EARLY_REPAYMENT_REBATE_BPS", "KYC_REGISTRY_ENABLED", "ADMIN_IDS", "KEEPER_IDS"} {
		t.Setenv(k, "")
	}
	c, err := fromEnv()
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}
	if c.AppPort != "8080" || c.DBDriver != DriverMySQL || c.GuardBackend != GuardLocal {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.EarlyRepaymentRebateBps != 1000 {
		t.Fatalf("rebate default = %d", c.EarlyRepaymentRebateBps)
	}
	if !c.KYCRegistry {
		t.Fatal("KYC registry should be enabled by default")
	}
	if len(c.AdminIDs) != 0 || len(c.KeeperIDs) != 0 {
		t.Fatalf("expected empty id lists, got %v %v", c.AdminIDs, c.KeeperIDs)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("ADMIN_IDS", " "+strings.ToUpper(adminID)+" , ")
	t.Setenv("KEEPER_IDS", strings.Repeat("b", 32)+","+strings.Repeat("c", 32))
	t.Setenv("EARLY_REPAYMENT_REBATE_BPS", "250")
	t.Setenv("GUARD_BACKEND", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "not-a-number")
	t.Setenv("KYC_REGISTRY_ENABLED", "false")

	c, err := fromEnv()
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}
	if c.DBDriver != DriverSQLite || c.DSN() != "/tmp/x.db" {
		t.Fatalf("sqlite driver not picked up: %+v", c)
	}
	if len(c.AdminIDs) != 1 || c.AdminIDs[0] != adminID {
		t.Fatalf("AdminIDs = %v", c.AdminIDs)
	}
	if len(c.KeeperIDs) != 2 {
		t.Fatalf("KeeperIDs = %v", c.KeeperIDs)
	}
	if c.EarlyRepaymentRebateBps != 250 || c.GuardBackend != GuardRedis || c.RedisDB != 3 {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.IdempTTLSecs != 300 {
		t.Fatalf("bad int should fall back to default, got %d", c.IdempTTLSecs)
	}
	if c.KYCRegistry {
		t.Fatal("KYC_REGISTRY_ENABLED=false not applied")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFromEnv_MalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"EARLY_REPAYMENT_REBATE_BPS", "ten"},
		{"EARLY_REPAYMENT_REBATE_BPS", "-5"},
		{"KYC_REGISTRY_ENABLED", "maybe"},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv("EARLY_REPAYMENT_REBATE_BPS", "")
			t.Setenv("KYC_REGISTRY_ENABLED", "")
			t.Setenv(tc.key, tc.value)

			c, err := fromEnv()
			if err == nil {
				t.Fatalf("expected error, got config %+v", c)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("error %q should name %s", err, tc.key)
			}
		})
	}
}

func TestLoad_MalformedRebate(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EARLY_REPAYMENT_REBATE_BPS", "1O00")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "EARLY_REPAYMENT_REBATE_BPS") {
		t.Fatalf("Load should reject malformed rebate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AppPort: "8080", DBDriver: DriverMySQL,
			MySQLHost: "h", MySQLPort: "3306", MySQLDB: "d", MySQLUser: "u",
			GuardBackend: GuardLocal, GuardTTLSecs: 30, KeeperIntervalS: 60,
			EarlyRepaymentRebateBps: 1000,
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"no port", func(c *Config) { c.AppPort = "" }, "APP_PORT"},
		{"mysql missing host", func(c *Config) { c.MySQLHost = "" }, "MySQL"},
		{"mysql bad port", func(c *Config) { c.MySQLPort = "nope" }, "MYSQL_PORT"},
		{"sqlite no path", func(c *Config) { c.DBDriver = DriverSQLite }, "SQLITE_PATH"},
		{"unknown driver", func(c *Config) { c.DBDriver = "postgres" }, "DB_DRIVER"},
		{"unknown guard", func(c *Config) { c.GuardBackend = "etcd" }, "GUARD_BACKEND"},
		{"guard ttl", func(c *Config) { c.GuardTTLSecs = 0 }, "GUARD_TTL_SECONDS"},
		{"keeper interval", func(c *Config) { c.KeeperIntervalS = -1 }, "KEEPER_INTERVAL_SECONDS"},
		{"rebate", func(c *Config) { c.EarlyRepaymentRebateBps = 10001 }, "REBATE"},
		{"bad admin", func(c *Config) { c.AdminIDs = []string{"xyz"} }, "caller id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	c := &Config{MySQLUser: "u", MySQLPass: "p", MySQLHost: "db", MySQLPort: "3307", MySQLDB: "yield"}
	want := "u:p@tcp(db:3307)/yield?multiStatements=true&parseTime=true&charset=utf8mb4,utf8"
	if got := c.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_PORT=9191\nAPP_ENV=staging\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv("APP_ENV", "production")
	// godotenv does not override values already present
	t.Setenv("APP_PORT", "")
	os.Unsetenv("APP_PORT")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.AppPort != "9191" {
		t.Fatalf("AppPort = %q, want value from .env", c.AppPort)
	}
	if c.AppEnv != "production" {
		t.Fatalf("AppEnv = %q, environment should win", c.AppEnv)
	}
}

func TestLoad_NoDotEnv(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load(); err != nil {
		t.Fatalf("Load without .env: %v", err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
