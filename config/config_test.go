package config_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/config"
)

func TestNewConfig_ParsesLists(t *testing.T) {
	t.Setenv("SEED_SCENARIO", "")
	t.Setenv("PORT", "8080")
	t.Setenv("DB_PATH", "finance.db")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("SNAPSHOT_SCHEDULE", "@daily")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, http://localhost:8080 ,")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "finance.db", cfg.DBPath)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.Equal(t, "", cfg.SeedScenario)
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SNAPSHOT_SCHEDULE", "0 6 * * *")
	t.Setenv("SEED_SCENARIO", "card-installments")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Equal(t, "0 6 * * *", cfg.SnapshotSchedule)
	assert.Equal(t, "card-installments", cfg.SeedScenario)
}

func TestNewConfig_Rejections(t *testing.T) {
	cases := map[string][2]string{
		"port not a number": {"PORT", "eighty"},
		"port out of range": {"PORT", "70000"},
		"unknown log level": {"LOG_LEVEL", "chatty"},
		"bad cron spec":     {"SNAPSHOT_SCHEDULE", "every tuesday"},
		"empty db path":     {"DB_PATH", ""},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("PORT", "8080")
			t.Setenv("LOG_LEVEL", "info")
			t.Setenv("SNAPSHOT_SCHEDULE", "@daily")
			t.Setenv("DB_PATH", "finance.db")
			t.Setenv(kv[0], kv[1])

			_, err := config.NewConfig()
			assert.Error(t, err)
		})
	}
}

func TestNewConfig_EmptyScheduleDisablesJob(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DB_PATH", "finance.db")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("SNAPSHOT_SCHEDULE", "")

	cfg, err := config.NewConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.SnapshotSchedule)
}
