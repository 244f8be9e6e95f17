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

// Package nats implements a SourceReader over a NATS queue subscription.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	natslib "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/isb"
	"github.com/dataradiant/streamcount/pkg/metrics"
	"github.com/dataradiant/streamcount/pkg/shared/logging"
	"github.com/dataradiant/streamcount/pkg/sources/sourcer"
)

type natsSource struct {
	name         string
	pipelineName string
	logger       *zap.SugaredLogger
	natsConn     *natslib.Conn
	sub          *natslib.Subscription
	bufferSize   int
	messages     chan *isb.ReadMessage
	readTimeout  time.Duration
}

var _ sourcer.SourceReader = (*natsSource)(nil)

// New returns a NATS SourceReader subscribed to the given subject as part of
// the queue group; members of the same queue group share the stream, which is
// how the source scales horizontally.
func New(pipelineName, url, subject, queue string, opts ...Option) (sourcer.SourceReader, error) {
	n := &natsSource{
		name:         "nats-source",
		pipelineName: pipelineName,
		bufferSize:   1000,            // default size
		readTimeout:  1 * time.Second, // default timeout
	}
	for _, o := range opts {
		if err := o(n); err != nil {
			return nil, err
		}
	}
	if n.logger == nil {
		n.logger = logging.NewLogger()
	}

	n.messages = make(chan *isb.ReadMessage, n.bufferSize)

	opt := []natslib.Option{
		natslib.MaxReconnects(-1),
		natslib.ReconnectWait(3 * time.Second),
		natslib.DisconnectErrHandler(func(c *natslib.Conn, err error) {
			n.logger.Errorw("Nats disconnected", zap.Error(err))
		}),
		natslib.ReconnectHandler(func(c *natslib.Conn) {
			n.logger.Info("Nats reconnected")
		}),
	}

	n.logger.Info("Connecting to nats service...")
	conn, err := natslib.Connect(url, opt...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats server, %w", err)
	}
	n.natsConn = conn

	sub, err := conn.QueueSubscribe(subject, queue, func(msg *natslib.Msg) {
		readOffset := isb.NewSimpleStringOffset(uuid.New().String(), 0, 0)
		m := isb.Message{
			Header: isb.Header{
				EventTime: time.Now(),
				ID:        readOffset.String(),
			},
			Body: isb.Body{Payload: msg.Data},
		}
		n.messages <- m.ToReadMessage(readOffset)
	})
	if err != nil {
		n.natsConn.Close()
		return nil, fmt.Errorf("failed to QueueSubscribe nats messages, %w", err)
	}
	n.sub = sub
	return n, nil
}

func (ns *natsSource) GetName() string {
	return ns.name
}

func (ns *natsSource) Read(_ context.Context, count int64) ([]*isb.ReadMessage, error) {
	msgs := make([]*isb.ReadMessage, 0, count)
	timeout := time.After(ns.readTimeout)
loop:
	for i := int64(0); i < count; i++ {
		select {
		case m := <-ns.messages:
			natsSourceReadCount.With(map[string]string{metrics.LabelPipeline: ns.pipelineName, metrics.LabelComponent: ns.name}).Inc()
			msgs = append(msgs, m)
		case <-timeout:
			ns.logger.Debugw("Timed out waiting for messages to read.", zap.Duration("waited", ns.readTimeout))
			break loop
		}
	}
	return msgs, nil
}

// Ack is a no-op; a core NATS subscription acknowledges on delivery.
func (ns *natsSource) Ack(_ context.Context, offsets []isb.Offset) []error {
	return make([]error, len(offsets))
}

func (ns *natsSource) Close() error {
	ns.logger.Info("Shutting down nats source server...")
	if err := ns.sub.Unsubscribe(); err != nil {
		ns.logger.Errorw("Failed to unsubscribe nats subscription", zap.Error(err))
	}
	ns.natsConn.Close()
	ns.logger.Info("Nats source server shutdown")
	return nil
}
