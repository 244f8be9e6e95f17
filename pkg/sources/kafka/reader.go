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

// Package kafka implements a SourceReader on top of a Kafka consumer group.
// Offsets are committed only after the pipeline acknowledges a batch, so a
// crash before the ack redelivers the batch (at-least-once).
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/isb"
	"github.com/dataradiant/streamcount/pkg/metrics"
	"github.com/dataradiant/streamcount/pkg/shared/logging"
	"github.com/dataradiant/streamcount/pkg/sources/sourcer"
)

// KafkaSource is a SourceReader backed by a Kafka consumer group.
type KafkaSource struct {
	// name of the source
	name string
	// name of the pipeline
	pipelineName string
	// group name for the consumer group
	groupName string
	// topic to consume messages from
	topic string
	// kafka brokers
	brokers []string
	// context cancel function
	cancelFn context.CancelFunc
	// lifecycle context
	lifecycleCtx context.Context
	// handler for a kafka consumer group
	handler *consumerHandler
	// sarama config for kafka consumer group
	config *sarama.Config
	// logger
	logger *zap.SugaredLogger
	// channel to indicate that the consumer loop is done
	stopCh chan struct{}
	// size of the buffer that holds consumed but yet to be forwarded messages
	handlerBuffer int
	// read timeout for Read calls
	readTimeout time.Duration
	// client used to calculate pending messages
	adminClient sarama.ClusterAdmin
	// sarama client
	saramaClient sarama.Client
}

var _ sourcer.SourceReader = (*KafkaSource)(nil)
var _ sourcer.LagReader = (*KafkaSource)(nil)

// kafkaOffset implements isb.Offset
// we need topic information to ack the message
type kafkaOffset struct {
	offset       int64
	partitionIdx int32
	topic        string
}

var _ isb.Offset = (*kafkaOffset)(nil)

func (k *kafkaOffset) String() string {
	return fmt.Sprintf("%s:%d:%d", k.topic, k.offset, k.partitionIdx)
}

func (k *kafkaOffset) Sequence() (int64, error) {
	return k.offset, nil
}

// AckIt acking is taken care by the consumer group
func (k *kafkaOffset) AckIt() error {
	// NOOP
	return nil
}

func (k *kafkaOffset) NoAck() error {
	return nil
}

func (k *kafkaOffset) PartitionIdx() int32 {
	return k.partitionIdx
}

func (k *kafkaOffset) Topic() string {
	return k.topic
}

// New returns a KafkaSource reader based on a Kafka consumer group.
func New(pipelineName string, brokers []string, topic, groupName string, opts ...Option) (*KafkaSource, error) {
	kafkaSource := &KafkaSource{
		name:          "kafka-source",
		pipelineName:  pipelineName,
		topic:         topic,
		brokers:       brokers,
		groupName:     groupName,
		readTimeout:   1 * time.Second, // default timeout
		handlerBuffer: 100,             // default buffer size for kafka reads
		config:        sarama.NewConfig(),
	}
	kafkaSource.config.Consumer.Offsets.Initial = sarama.OffsetOldest

	for _, o := range opts {
		if err := o(kafkaSource); err != nil {
			return nil, err
		}
	}
	if kafkaSource.logger == nil {
		kafkaSource.logger = logging.NewLogger()
	}

	sarama.Logger = zap.NewStdLog(kafkaSource.logger.Desugar())

	// return errors from the underlying kafka client using the Errors channel
	kafkaSource.config.Consumer.Return.Errors = true

	ctx, cancel := context.WithCancel(context.Background())
	kafkaSource.cancelFn = cancel
	kafkaSource.lifecycleCtx = ctx
	kafkaSource.stopCh = make(chan struct{})
	kafkaSource.handler = newConsumerHandler(kafkaSource.handlerBuffer)

	client, err := sarama.NewClient(kafkaSource.brokers, kafkaSource.config)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create sarama client, %w", err)
	}
	kafkaSource.saramaClient = client
	adminClient, err := sarama.NewClusterAdminFromClient(client)
	if err != nil {
		if !client.Closed() {
			_ = client.Close()
		}
		cancel()
		return nil, fmt.Errorf("failed to create sarama cluster admin client, %w", err)
	}
	kafkaSource.adminClient = adminClient

	go kafkaSource.startConsumer()
	// wait for the first session before handing the reader out
	<-kafkaSource.handler.sessionUp
	kafkaSource.logger.Info("Consumer ready. Starting kafka reader...")

	return kafkaSource, nil
}

func (r *KafkaSource) GetName() string {
	return r.name
}

// Read pulls up to count messages from the consumer group handler, waiting no
// longer than the read timeout.
func (r *KafkaSource) Read(_ context.Context, count int64) ([]*isb.ReadMessage, error) {
	msgs := make([]*isb.ReadMessage, 0, count)
	timeout := time.After(r.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m := <-r.handler.messages:
			kafkaSourceReadCount.With(map[string]string{metrics.LabelPipeline: r.pipelineName, metrics.LabelComponent: r.name}).Inc()
			msgs = append(msgs, toReadMessage(m))
		case <-timeout:
			// log that timeout has happened and don't return an error
			r.logger.Debugw("Timed out waiting for messages to read.", zap.Duration("waited", r.readTimeout))
			break loop
		}
	}
	return msgs, nil
}

// Ack marks the offsets consumed; the consumer group commits them on the next
// session checkpoint.
func (r *KafkaSource) Ack(_ context.Context, offsets []isb.Offset) []error {
	// hold the session teardown open until every offset here is marked
	r.handler.ackInFlight = make(chan struct{})
	defer close(r.handler.ackInFlight)

	for _, offset := range offsets {
		topic := offset.(*kafkaOffset).Topic()

		// we need to mark the offset of the next message to read
		pOffset, err := offset.Sequence()
		if err != nil {
			kafkaSourceOffsetAckErrors.With(map[string]string{metrics.LabelPipeline: r.pipelineName, metrics.LabelComponent: r.name}).Inc()
			r.logger.Errorw("Unable to extract partition offset of type int64 from the supplied offset. skipping and continuing", zap.String("supplied-offset", offset.String()), zap.Error(err))
			continue
		}
		r.handler.session.MarkOffset(topic, offset.PartitionIdx(), pOffset+1, "")
		kafkaSourceAckCount.With(map[string]string{metrics.LabelPipeline: r.pipelineName, metrics.LabelComponent: r.name}).Inc()
	}
	return make([]error, len(offsets))
}

// Pending returns the consumer group lag across the topic's partitions.
func (r *KafkaSource) Pending(_ context.Context) (int64, error) {
	if r.adminClient == nil || r.saramaClient == nil {
		return isb.PendingNotAvailable, nil
	}
	partitions, err := r.saramaClient.Partitions(r.topic)
	if err != nil {
		return isb.PendingNotAvailable, fmt.Errorf("failed to get partitions, %w", err)
	}
	totalPending := int64(0)
	rep, err := r.adminClient.ListConsumerGroupOffsets(r.groupName, map[string][]int32{r.topic: partitions})
	if err != nil {
		return isb.PendingNotAvailable, fmt.Errorf("failed to list consumer group offsets, %w", err)
	}
	for _, partition := range partitions {
		block := rep.GetBlock(r.topic, partition)
		if block.Offset == -1 {
			// no offset yet for this partition under the consumer group,
			// nothing has been published to it
			continue
		}
		partitionOffset, err := r.saramaClient.GetOffset(r.topic, partition, sarama.OffsetNewest)
		if err != nil {
			return isb.PendingNotAvailable, fmt.Errorf("failed to get offset of topic %q, partition %v, %w", r.topic, partition, err)
		}
		totalPending += partitionOffset - block.Offset
	}
	return totalPending, nil
}

func (r *KafkaSource) Close() error {
	r.logger.Info("Closing kafka reader...")
	r.cancelFn()
	if r.adminClient != nil {
		// closes the underlying sarama client as well.
		if err := r.adminClient.Close(); err != nil {
			r.logger.Errorw("Error in closing kafka admin client", zap.Error(err))
		}
	}
	<-r.stopCh
	r.logger.Info("Kafka reader closed")
	return nil
}

func (r *KafkaSource) startConsumer() {
	client, err := sarama.NewConsumerGroup(r.brokers, r.groupName, r.config)
	r.logger.Infow("creating NewConsumerGroup", zap.String("topic", r.topic), zap.String("consumerGroupName", r.groupName), zap.Strings("brokers", r.brokers))
	if err != nil {
		r.logger.Panicw("Problem initializing sarama client", zap.Error(err))
	}

	go func() {
		for {
			select {
			case <-r.lifecycleCtx.Done():
				return
			case cErr := <-client.Errors():
				r.logger.Errorw("Kafka consumer error", zap.Error(cErr))
			}
		}
	}()

	for {
		// `Consume` should be called inside an infinite loop; when a
		// server-side re-balance happens, the consumer session will need to be
		// recreated to get the new claims
		if conErr := client.Consume(r.lifecycleCtx, []string{r.topic}, r.handler); conErr != nil {
			r.logger.Errorw("Kafka consumer failed", zap.Error(conErr))
		}
		// check if context was cancelled, signaling that the consumer should stop
		if r.lifecycleCtx.Err() != nil {
			break
		}
	}
	_ = client.Close()
	close(r.stopCh)
}

func toReadMessage(m *sarama.ConsumerMessage) *isb.ReadMessage {
	readOffset := &kafkaOffset{
		offset:       m.Offset,
		partitionIdx: m.Partition,
		topic:        m.Topic,
	}
	msg := isb.Message{
		Header: isb.Header{
			EventTime: m.Timestamp,
			ID:        readOffset.String(),
			Keys:      []string{string(m.Key)},
		},
		Body: isb.Body{Payload: m.Value},
	}
	return msg.ToReadMessage(readOffset)
}
