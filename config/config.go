// Package config loads engine settings from an optional YAML file and
// FNR_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Engine struct {
	Lanes     int `mapstructure:"lanes"`
	QueueSize int `mapstructure:"queue_size"`
	OutBuffer int `mapstructure:"out_buffer"`
}

type WAL struct {
	Dir         string        `mapstructure:"dir"`
	SegmentSize int64         `mapstructure:"segment_size"`
	SegmentAge  time.Duration `mapstructure:"segment_age"`
}

type Outbox struct {
	Dir string `mapstructure:"dir"`
}

type Kafka struct {
	Brokers         []string      `mapstructure:"brokers"`
	EventsTopic     string        `mapstructure:"events_topic"`
	SummaryTopic    string        `mapstructure:"summary_topic"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
	SummaryInterval time.Duration `mapstructure:"summary_interval"`
}

type API struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	Engine Engine `mapstructure:"engine"`
	WAL    WAL    `mapstructure:"wal"`
	Outbox Outbox `mapstructure:"outbox"`
	Kafka  Kafka  `mapstructure:"kafka"`
	API    API    `mapstructure:"api"`
}

// Load reads path when non-empty, otherwise returns defaults merged
// with the environment. Durability, Kafka and the API are all off by
// default: the bare binary is a pure stream processor.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("engine.lanes", 0) // 0 = GOMAXPROCS
	v.SetDefault("engine.queue_size", 1024)
	v.SetDefault("engine.out_buffer", 4096)
	v.SetDefault("wal.dir", "")
	v.SetDefault("wal.segment_size", 2<<20)
	v.SetDefault("wal.segment_age", time.Minute)
	v.SetDefault("outbox.dir", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.events_topic", "fenrir.events")
	v.SetDefault("kafka.summary_topic", "fenrir.book-summaries")
	v.SetDefault("kafka.flush_interval", 250*time.Millisecond)
	v.SetDefault("kafka.summary_interval", 2*time.Second)
	v.SetDefault("api.addr", "")

	v.SetEnvPrefix("FNR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// KafkaEnabled reports whether any Kafka output should start.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
