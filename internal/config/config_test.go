package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	cfg := Load()

	assert.Equal(t, "installments-api", cfg.App.Name)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "./data/ledger.db", cfg.Database.Path)
	assert.Equal(t, "VTA", cfg.Ledger.SaleNumberPrefix)
	assert.Equal(t, 3, cfg.Ledger.UpcomingDays)
	assert.Equal(t, 120, cfg.Ledger.MaxInstallments)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.Log.SlowThreshold)
}

func TestLoadFromEnvironment(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("LEDGER_SALE_NUMBER_PREFIX", "CR")
	t.Setenv("LEDGER_UPCOMING_DAYS", "5")
	t.Setenv("AUTH_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "CR", cfg.Ledger.SaleNumberPrefix)
	assert.Equal(t, 5, cfg.Ledger.UpcomingDays)
	assert.True(t, cfg.Auth.Enabled)
}

func TestDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host: "localhost", Port: "5432", Name: "ledger", User: "app",
		Password: "secret", SSLMode: "disable", Timezone: "UTC",
	}
	assert.Equal(t, "host=localhost user=app password=secret dbname=ledger port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_foreign_keys=on", (&DatabaseConfig{Path: ":memory:"}).SQLiteDSN())
	assert.Equal(t, "ledger.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", (&DatabaseConfig{Path: "ledger.db"}).SQLiteDSN())
}
