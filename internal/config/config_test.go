package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/runlog/internal/timeutil"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "TIMEZONE", "RETENTION_CUTOFF", "HIGHLIGHT_RANGES", "KAFKA_BROKERS", "COUNTDOWN_START", "COUNTDOWN_END"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, "data.json", cfg.SnapshotKey)
	require.Equal(t, time.UTC, cfg.Location)
	require.True(t, cfg.RetentionCutoff.IsZero())
	require.Empty(t, cfg.KafkaBrokers)
	require.Empty(t, cfg.Highlights)
	require.False(t, cfg.HasCountdown())
	require.Equal(t, 91.5, cfg.StartWeight)
	require.Equal(t, 1000.0, cfg.DistanceGoalKm)
	require.Equal(t, []string{"runlog_snapshots"}, cfg.ConsumerTopics)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("TIMEZONE", "Asia/Riyadh")
	t.Setenv("RETENTION_CUTOFF", "2026-01-01")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("HIGHLIGHT_RANGES", `[{"label":"Ramadan","start":"2026-02-18","end":"2026-03-19","excludeEnd":true}]`)
	t.Setenv("COUNTDOWN_START", "2026-01-01T00:00:00+03:00")
	t.Setenv("COUNTDOWN_END", "2026-01-31T00:00:00+03:00")
	t.Setenv("REQUIRE_DATA_KEY", "true")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, "Asia/Riyadh", cfg.Location.String())
	require.Equal(t, timeutil.NewDate(2026, time.January, 1), cfg.RetentionCutoff)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Len(t, cfg.Highlights, 1)
	require.Equal(t, "Ramadan", cfg.Highlights[0].Label)
	require.True(t, cfg.Highlights[0].ExcludeEnd)
	require.Equal(t, timeutil.NewDate(2026, time.March, 19), cfg.Highlights[0].End)
	require.True(t, cfg.HasCountdown())
	require.True(t, cfg.RequireDataKey)
	require.Equal(t, 25, cfg.OutboxBatchSize)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":     "mongo",
		"TIMEZONE":         "Mars/Olympus",
		"RETENTION_CUTOFF": "01/01/2026",
		"HIGHLIGHT_RANGES": `{"label":"x"}`,
		"COUNTDOWN_START":  "tomorrow",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.ErrorContains(t, err, key)
		})
	}
}

func TestLoadRejectsInvertedCountdown(t *testing.T) {
	t.Setenv("COUNTDOWN_START", "2026-02-01T00:00:00Z")
	t.Setenv("COUNTDOWN_END", "2026-01-01T00:00:00Z")

	_, err := Load()
	require.Error(t, err)
}
