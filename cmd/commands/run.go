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

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dataradiant/streamcount/pkg/aggregate"
	"github.com/dataradiant/streamcount/pkg/config"
	"github.com/dataradiant/streamcount/pkg/pipeline"
	"github.com/dataradiant/streamcount/pkg/shared/logging"
	"github.com/dataradiant/streamcount/pkg/sinks/blackhole"
	filesink "github.com/dataradiant/streamcount/pkg/sinks/file"
	kafkasink "github.com/dataradiant/streamcount/pkg/sinks/kafka"
	loggersink "github.com/dataradiant/streamcount/pkg/sinks/logger"
	"github.com/dataradiant/streamcount/pkg/sinks/sinker"
	"github.com/dataradiant/streamcount/pkg/sources/generator"
	kafkasource "github.com/dataradiant/streamcount/pkg/sources/kafka"
	natssource "github.com/dataradiant/streamcount/pkg/sources/nats"
	"github.com/dataradiant/streamcount/pkg/sources/sourcer"
	"github.com/dataradiant/streamcount/pkg/window/fixed"
)

func NewRunCommand() *cobra.Command {
	var configFile string

	command := &cobra.Command{
		Use:   "run",
		Short: "Run the windowed word count pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("run")
			ctx, stop := signal.NotifyContext(logging.WithLogger(context.Background(), logger), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conf, err := config.Load(configFile)
			if err != nil {
				// InvalidConfiguration is fatal before any processing begins
				return err
			}

			assigner, err := fixed.NewAssigner(conf.Pipeline.WindowDuration)
			if err != nil {
				return err
			}

			aggOpts := []aggregate.Option{
				aggregate.WithLogger(logger),
				aggregate.WithPipelineName(conf.PipelineName),
				aggregate.WithLatePolicy(aggregate.LatePolicy(conf.Pipeline.LateDataPolicy)),
			}
			agg, err := aggregate.New(conf.Pipeline.IdleGapDuration, aggOpts...)
			if err != nil {
				return err
			}

			source, err := buildSource(conf, logger)
			if err != nil {
				return err
			}
			sink, err := buildSink(conf, logger)
			if err != nil {
				return err
			}

			pipelineOpts := []pipeline.Option{
				pipeline.WithLogger(logger),
				pipeline.WithReadBatchSize(conf.Pipeline.ReadBatchSize),
				pipeline.WithPollInterval(conf.Pipeline.PollInterval),
			}
			if conf.Pipeline.LateDataPolicy == "sideOutput" {
				// late elements are observable on the log, not merged anywhere
				side, err := loggersink.New(loggersink.WithLogger(logger.Named("late")))
				if err != nil {
					return err
				}
				pipelineOpts = append(pipelineOpts, pipeline.WithSideSink(side))
			}

			p, err := pipeline.New(conf.PipelineName, source, sink, assigner, agg, pipelineOpts...)
			if err != nil {
				return err
			}
			logger.Infow("Configuration loaded",
				zap.Duration("windowDuration", conf.Pipeline.WindowDuration),
				zap.Duration("idleGapDuration", conf.Pipeline.IdleGapDuration),
				zap.String("lateDataPolicy", conf.Pipeline.LateDataPolicy),
				zap.String("source", conf.Source.Type),
				zap.String("sink", conf.Sink.Type))
			return p.Start(ctx)
		},
	}
	command.Flags().StringVar(&configFile, "config", "", "Path to the configuration file")
	return command
}

func buildSource(conf *config.Config, logger *zap.SugaredLogger) (sourcer.SourceReader, error) {
	switch conf.Source.Type {
	case "kafka":
		return kafkasource.New(conf.PipelineName, conf.Source.Kafka.Brokers, conf.Source.Kafka.Topic, conf.Source.Kafka.ConsumerGroup,
			kafkasource.WithLogger(logger),
			kafkasource.WithOffsetReset(conf.Source.Kafka.AutoOffsetReset))
	case "nats":
		return natssource.New(conf.PipelineName, conf.Source.Nats.URL, conf.Source.Nats.Subject, conf.Source.Nats.Queue,
			natssource.WithLogger(logger))
	case "generator":
		return generator.New(conf.PipelineName, conf.Source.Generator.RecordsPerTick, conf.Source.Generator.Tick,
			generator.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown source type %q", conf.Source.Type)
	}
}

func buildSink(conf *config.Config, logger *zap.SugaredLogger) (sinker.Sinker, error) {
	switch conf.Sink.Type {
	case "file":
		return filesink.New(conf.Sink.File.Path, filesink.WithLogger(logger))
	case "kafka":
		return kafkasink.New(conf.PipelineName, conf.Sink.Kafka.Brokers, conf.Sink.Kafka.Topic, kafkasink.WithLogger(logger))
	case "logger":
		return loggersink.New(loggersink.WithLogger(logger))
	case "blackhole":
		return blackhole.New(), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", conf.Sink.Type)
	}
}
