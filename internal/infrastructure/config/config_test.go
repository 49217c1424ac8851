package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "catalog-mirror", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "catalog_mirror", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "2025-01", cfg.Shopify.APIVersion)
		assert.Equal(t, 3, cfg.Shopify.Retries)
		assert.Equal(t, 5, cfg.Jobs.MaxAttempts)
		assert.Equal(t, 10*time.Minute, cfg.Jobs.StaleAfter)
		assert.Equal(t, []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second, 120 * time.Second}, cfg.Jobs.Backoff)
		assert.Equal(t, 10, cfg.Gate.MaxAttempts)
		assert.Equal(t, 60*time.Second, cfg.Gate.ReleaseDelay)
		assert.Equal(t, 24*time.Hour, cfg.Ingest.DedupTTL)
		assert.False(t, cfg.MirrorBootstrap.Enabled)
		assert.True(t, cfg.MirrorBootstrap.DryRun)
		assert.Empty(t, cfg.Redis.Addr())
	})

	t.Run("loads values from environment variables with MIRROR prefix", func(t *testing.T) {
		t.Setenv("MIRROR_APP_NAME", "test-app")
		t.Setenv("MIRROR_APP_PORT", "9000")
		t.Setenv("MIRROR_DATABASE_HOST", "testdb.local")
		t.Setenv("MIRROR_DATABASE_PORT", "5433")
		t.Setenv("MIRROR_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("MIRROR_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("MIRROR_REDIS_HOST", "cache.local")
		t.Setenv("MIRROR_SHOPIFY_API_VERSION", "2024-10")
		t.Setenv("MIRROR_JOBS_WORKERS", "8")
		t.Setenv("MIRROR_GATE_RELEASE_DELAY", "90s")
		t.Setenv("MIRROR_MIRROR_BOOTSTRAP_ENABLED", "true")
		t.Setenv("MIRROR_MIRROR_BOOTSTRAP_DRY_RUN", "false")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
		assert.Equal(t, "2024-10", cfg.Shopify.APIVersion)
		assert.Equal(t, 8, cfg.Jobs.Workers)
		assert.Equal(t, 90*time.Second, cfg.Gate.ReleaseDelay)
		assert.True(t, cfg.MirrorBootstrap.Enabled)
		assert.False(t, cfg.MirrorBootstrap.DryRun)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("MIRROR_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("MIRROR_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("requires app secret when signatures are verified", func(t *testing.T) {
		t.Setenv("MIRROR_INGEST_VERIFY_SIGNATURES", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shopify.app_secret is required")
	})

	t.Run("requires brokers when kafka is enabled", func(t *testing.T) {
		t.Setenv("MIRROR_KAFKA_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kafka.brokers")
	})
}

func TestFromViper_FileValues(t *testing.T) {
	v := viper.New()
	v.Set("replication.new_product_tag", "new-arrival")
	v.Set("replication.collections", map[string]any{"a.myshopify.com": "gid://shopify/Collection/1"})
	v.Set("jobs.backoff", []string{"1s", "5s"})
	v.Set("gate.ignored_domains", []string{"skip.myshopify.com"})

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "new-arrival", cfg.Replication.NewProductTag)
	assert.Equal(t, "gid://shopify/Collection/1", cfg.Replication.Collections["a.myshopify.com"])
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second}, cfg.Jobs.Backoff)
	assert.Equal(t, []string{"skip.myshopify.com"}, cfg.Gate.IgnoredDomains)

	t.Run("rejects malformed backoff", func(t *testing.T) {
		v := viper.New()
		v.Set("jobs.backoff", []string{"soon"})
		_, err := fromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jobs.backoff")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("MIRROR_APP_ENV", "production")
		t.Setenv("MIRROR_DATABASE_PASSWORD", "secure-password")
		t.Setenv("MIRROR_DATABASE_SSLMODE", "require")
		t.Setenv("MIRROR_INGEST_VERIFY_SIGNATURES", "true")
		t.Setenv("MIRROR_SHOPIFY_APP_SECRET", "shpss_secret")
	}

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "requires database.password in production",
			env:     map[string]string{"MIRROR_DATABASE_PASSWORD": ""},
			wantErr: "database.password is required in production",
		},
		{
			name:    "requires SSL enabled in production",
			env:     map[string]string{"MIRROR_DATABASE_SSLMODE": "disable"},
			wantErr: "database.sslmode cannot be 'disable' in production",
		},
		{
			name:    "requires signature verification in production",
			env:     map[string]string{"MIRROR_INGEST_VERIFY_SIGNATURES": "false"},
			wantErr: "ingest.verify_signatures must be true in production",
		},
		{
			name:    "rejects full SQL logging in production",
			env:     map[string]string{"MIRROR_TELEMETRY_DB_LOG_FULL_SQL": "true"},
			wantErr: "telemetry.db_log_full_sql must be false",
		},
		{
			name: "passes validation with valid production config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "production", cfg.App.Env)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
