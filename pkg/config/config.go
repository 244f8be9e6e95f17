/*
Copyright 2023 The Dataradiant Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads and validates the pipeline configuration from a YAML
// file and STREAMCOUNT_* environment overrides. Validation fails fast: a bad
// configuration halts the process before any record is read.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfiguration is wrapped by every validation failure.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config is the full processor configuration.
type Config struct {
	PipelineName string       `mapstructure:"pipelineName"`
	Pipeline     PipelineConf `mapstructure:"pipeline"`
	Source       SourceConf   `mapstructure:"source"`
	Sink         SinkConf     `mapstructure:"sink"`
}

// PipelineConf configures the aggregation core.
type PipelineConf struct {
	// WindowDuration is the fixed window length.
	WindowDuration time.Duration `mapstructure:"windowDuration"`
	// IdleGapDuration is how long a window (and all earlier ones) must stay
	// idle before it is declared complete. Zero means "same as the window".
	IdleGapDuration time.Duration `mapstructure:"idleGapDuration"`
	// LateDataPolicy is drop or sideOutput.
	LateDataPolicy string `mapstructure:"lateDataPolicy"`
	// ReadBatchSize is the source read batch size.
	ReadBatchSize int64 `mapstructure:"readBatchSize"`
	// PollInterval is how often completed windows are looked for.
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// SourceConf selects and configures the record source.
type SourceConf struct {
	Type      string        `mapstructure:"type"`
	Kafka     KafkaConf     `mapstructure:"kafka"`
	Nats      NatsConf      `mapstructure:"nats"`
	Generator GeneratorConf `mapstructure:"generator"`
}

// KafkaConf configures the Kafka source or sink.
type KafkaConf struct {
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	ConsumerGroup   string   `mapstructure:"consumerGroup"`
	AutoOffsetReset string   `mapstructure:"autoOffsetReset"`
}

// NatsConf configures the NATS source.
type NatsConf struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"`
}

// GeneratorConf configures the synthetic source.
type GeneratorConf struct {
	RecordsPerTick int           `mapstructure:"recordsPerTick"`
	Tick           time.Duration `mapstructure:"tick"`
}

// SinkConf selects and configures the output sink.
type SinkConf struct {
	Type  string    `mapstructure:"type"`
	File  FileConf  `mapstructure:"file"`
	Kafka KafkaConf `mapstructure:"kafka"`
}

// FileConf configures the file sink.
type FileConf struct {
	Path string `mapstructure:"path"`
}

// Load reads the configuration. An empty path loads defaults and environment
// overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("STREAMCOUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q, %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration, %w", err)
	}
	if c.Pipeline.IdleGapDuration == 0 {
		// default to the window length so normal jitter never completes a
		// window prematurely
		c.Pipeline.IdleGapDuration = c.Pipeline.WindowDuration
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipelineName", "streamcount")
	v.SetDefault("pipeline.windowDuration", time.Minute)
	v.SetDefault("pipeline.lateDataPolicy", "drop")
	v.SetDefault("pipeline.readBatchSize", 64)
	v.SetDefault("pipeline.pollInterval", time.Second)
	v.SetDefault("source.type", "kafka")
	v.SetDefault("source.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("source.kafka.topic", "beam")
	v.SetDefault("source.kafka.consumerGroup", "streamcount")
	v.SetDefault("source.kafka.autoOffsetReset", "earliest")
	v.SetDefault("source.nats.url", "nats://localhost:4222")
	v.SetDefault("source.nats.subject", "beam")
	v.SetDefault("source.nats.queue", "streamcount")
	v.SetDefault("source.generator.recordsPerTick", 5)
	v.SetDefault("source.generator.tick", time.Second)
	v.SetDefault("sink.type", "file")
	v.SetDefault("sink.file.path", "/tmp/output.txt")
	v.SetDefault("sink.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("sink.kafka.topic", "counts")
}

// Validate checks the configuration, wrapping ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.Pipeline.WindowDuration <= 0 {
		return fmt.Errorf("%w: windowDuration %v must be positive", ErrInvalidConfiguration, c.Pipeline.WindowDuration)
	}
	if c.Pipeline.IdleGapDuration <= 0 {
		return fmt.Errorf("%w: idleGapDuration %v must be positive", ErrInvalidConfiguration, c.Pipeline.IdleGapDuration)
	}
	if c.Pipeline.ReadBatchSize <= 0 {
		return fmt.Errorf("%w: readBatchSize %d must be positive", ErrInvalidConfiguration, c.Pipeline.ReadBatchSize)
	}
	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("%w: pollInterval %v must be positive", ErrInvalidConfiguration, c.Pipeline.PollInterval)
	}
	switch c.Pipeline.LateDataPolicy {
	case "drop", "sideOutput":
	default:
		return fmt.Errorf("%w: unknown lateDataPolicy %q", ErrInvalidConfiguration, c.Pipeline.LateDataPolicy)
	}
	switch c.Source.Type {
	case "kafka":
		if len(c.Source.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: kafka source needs at least one broker", ErrInvalidConfiguration)
		}
		if c.Source.Kafka.Topic == "" {
			return fmt.Errorf("%w: kafka source needs a topic", ErrInvalidConfiguration)
		}
	case "nats":
		if c.Source.Nats.URL == "" || c.Source.Nats.Subject == "" {
			return fmt.Errorf("%w: nats source needs a url and a subject", ErrInvalidConfiguration)
		}
	case "generator":
		if c.Source.Generator.RecordsPerTick <= 0 || c.Source.Generator.Tick <= 0 {
			return fmt.Errorf("%w: generator source needs a positive rate", ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidConfiguration, c.Source.Type)
	}
	switch c.Sink.Type {
	case "file":
		if c.Sink.File.Path == "" {
			return fmt.Errorf("%w: file sink needs a path", ErrInvalidConfiguration)
		}
	case "kafka":
		if len(c.Sink.Kafka.Brokers) == 0 || c.Sink.Kafka.Topic == "" {
			return fmt.Errorf("%w: kafka sink needs brokers and a topic", ErrInvalidConfiguration)
		}
	case "logger", "blackhole":
	default:
		return fmt.Errorf("%w: unknown sink type %q", ErrInvalidConfiguration, c.Sink.Type)
	}
	return nil
}
