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

// Package kafka implements a sink producing the output lines to a topic.
package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/metrics"
	"github.com/dataradiant/streamcount/pkg/shared/logging"
)

// ToKafka produces the output to a kafka topic.
type ToKafka struct {
	name         string
	pipelineName string
	producer     sarama.SyncProducer
	topic        string
	concurrency  int
	log          *zap.SugaredLogger
}

// Option is a Kafka sink option.
type Option func(*ToKafka) error

type sinkMessage struct {
	index   int
	message *sarama.ProducerMessage
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToKafka) error {
		t.log = log
		return nil
	}
}

// WithConcurrency sets the number of concurrent producer workers.
func WithConcurrency(n int) Option {
	return func(t *ToKafka) error {
		if n <= 0 {
			return fmt.Errorf("invalid sink concurrency %d, must be positive", n)
		}
		t.concurrency = n
		return nil
	}
}

// New returns a ToKafka sink.
func New(pipelineName string, brokers []string, topic string, opts ...Option) (*ToKafka, error) {
	toKafka := &ToKafka{
		name:         "kafka-sink",
		pipelineName: pipelineName,
		topic:        topic,
		concurrency:  1,
	}
	for _, o := range opts {
		if err := o(toKafka); err != nil {
			return nil, err
		}
	}
	if toKafka.log == nil {
		toKafka.log = logging.NewLogger()
	}
	toKafka.log = toKafka.log.With("sinkType", "kafka").With("topic", topic)

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer, %w", err)
	}
	toKafka.producer = producer
	return toKafka, nil
}

// GetName returns the name.
func (tk *ToKafka) GetName() string {
	return tk.name
}

// Write produces the lines to the topic, keeping the per-line error slots.
func (tk *ToKafka) Write(_ context.Context, lines []string) []error {
	errs := make([]error, len(lines))
	wg := new(sync.WaitGroup)

	sinkCh := make(chan *sinkMessage)

	for i := 0; i < tk.concurrency; i++ {
		wg.Add(1)
		go func(msgCh chan *sinkMessage) {
			defer wg.Done()
			for message := range msgCh {
				_, _, err := tk.producer.SendMessage(message.message)
				if err != nil {
					kafkaSinkWriteErrors.With(map[string]string{metrics.LabelPipeline: tk.pipelineName, metrics.LabelComponent: tk.name}).Inc()
					tk.log.Errorw("SendMessage failed", zap.Error(err))
				} else {
					kafkaSinkWriteCount.With(map[string]string{metrics.LabelPipeline: tk.pipelineName, metrics.LabelComponent: tk.name}).Inc()
				}
				// keep error in message index
				errs[message.index] = err
			}
		}(sinkCh)
	}
	for idx, line := range lines {
		message := &sarama.ProducerMessage{
			Topic: tk.topic,
			Value: sarama.StringEncoder(line),
		}
		sinkCh <- &sinkMessage{index: idx, message: message}
	}
	close(sinkCh)
	wg.Wait()
	return errs
}

func (tk *ToKafka) Close() error {
	tk.log.Info("Closing kafka producer...")
	return tk.producer.Close()
}
