package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Engine.Lanes)
	assert.Equal(t, 1024, cfg.Engine.QueueSize)
	assert.Equal(t, 4096, cfg.Engine.OutBuffer)

	assert.Empty(t, cfg.WAL.Dir, "journal off by default")
	assert.Equal(t, int64(2<<20), cfg.WAL.SegmentSize)
	assert.Equal(t, time.Minute, cfg.WAL.SegmentAge)

	assert.Empty(t, cfg.Outbox.Dir)
	assert.Empty(t, cfg.API.Addr)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "fenrir.events", cfg.Kafka.EventsTopic)
	assert.Equal(t, "fenrir.book-summaries", cfg.Kafka.SummaryTopic)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fenrir.yaml")
	yaml := `
engine:
  lanes: 8
  queue_size: 512
wal:
  dir: /var/lib/fenrir/wal
  segment_size: 1048576
kafka:
  brokers: ["k1:9092", "k2:9092"]
  events_topic: custom.events
api:
  addr: ":8080"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Engine.Lanes)
	assert.Equal(t, 512, cfg.Engine.QueueSize)
	assert.Equal(t, 4096, cfg.Engine.OutBuffer, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/fenrir/wal", cfg.WAL.Dir)
	assert.Equal(t, int64(1<<20), cfg.WAL.SegmentSize)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "custom.events", cfg.Kafka.EventsTopic)
	assert.Equal(t, ":8080", cfg.API.Addr)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FNR_ENGINE_LANES", "3")
	t.Setenv("FNR_API_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.Lanes)
	assert.Equal(t, ":9999", cfg.API.Addr)
}
