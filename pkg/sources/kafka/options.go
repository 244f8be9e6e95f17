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

package kafka

import (
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Option is a Kafka source option.
type Option func(*KafkaSource) error

// WithLogger is used to return logger information
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *KafkaSource) error {
		o.logger = l
		return nil
	}
}

// WithBufferSize is used to return size of message channel information
func WithBufferSize(s int) Option {
	return func(o *KafkaSource) error {
		o.handlerBuffer = s
		return nil
	}
}

// WithReadTimeOut is used to set the read timeout for the from buffer
func WithReadTimeOut(t time.Duration) Option {
	return func(o *KafkaSource) error {
		o.readTimeout = t
		return nil
	}
}

// WithSaramaConfig replaces the default sarama config.
func WithSaramaConfig(c *sarama.Config) Option {
	return func(o *KafkaSource) error {
		o.config = c
		return nil
	}
}

// WithOffsetReset sets where a fresh consumer group starts; "earliest"
// replays the topic from the beginning, "latest" starts at the tip.
func WithOffsetReset(reset string) Option {
	return func(o *KafkaSource) error {
		switch reset {
		case "latest":
			o.config.Consumer.Offsets.Initial = sarama.OffsetNewest
		default:
			o.config.Consumer.Offsets.Initial = sarama.OffsetOldest
		}
		return nil
	}
}
