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
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/shared/logging"
)

// consumerHandler bridges sarama's consumer-group callbacks and the
// KafkaSource. Claimed messages are funneled into a bounded channel that
// Read drains; the session is kept so that Ack can mark offsets on it.
type consumerHandler struct {
	// ackInFlight, when non-nil, holds the session teardown open until the
	// Ack that created it has marked all its offsets
	ackInFlight   chan struct{}
	sessionUp     chan struct{}
	sessionUpOnce sync.Once
	messages      chan *sarama.ConsumerMessage
	session       sarama.ConsumerGroupSession
	logger        *zap.SugaredLogger
}

func newConsumerHandler(bufferSize int) *consumerHandler {
	return &consumerHandler{
		sessionUp: make(chan struct{}),
		messages:  make(chan *sarama.ConsumerMessage, bufferSize),
		logger:    logging.NewLogger(),
	}
}

// Setup captures the session and unblocks the source waiting for the first
// claim.
func (h *consumerHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.session = session
	h.sessionUpOnce.Do(func() {
		close(h.sessionUp)
	})
	return nil
}

// Cleanup commits the marked offsets once no Ack is mid-flight, so a
// rebalance never loses an acknowledgement.
func (h *consumerHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	if acks := h.ackInFlight; acks != nil {
		<-acks
	}
	session.Commit()
	return nil
}

// ConsumeClaim forwards the claim's messages until the claim is closed or the
// session ends. Sarama runs one of these per claimed partition.
func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.messages <- msg
		case <-session.Context().Done():
			h.logger.Infow("Session ended, stopping the claim", zap.String("topic", claim.Topic()), zap.Int32("partition", claim.Partition()))
			return nil
		}
	}
}
