/*
Copyright 2025.

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

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	Name    string
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single produce request. Default 10s.
	WriteTimeout time.Duration
	MinLevel     Level
}

// KafkaSink publishes events to a Kafka topic, keyed by run ID so the events
// of one run stay ordered within a partition.
type KafkaSink struct {
	name     string
	minLevel Level
	writer   *kafka.Writer
	logger   *zap.Logger
	mu       sync.Mutex
	closed   bool
}

// NewKafkaSink creates a new KafkaSink. No connection is made until the first
// Write.
func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	minLevel := cfg.MinLevel
	if minLevel == "" {
		minLevel = LevelInfo
	}
	name := cfg.Name
	if name == "" {
		name = "kafka"
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
		// Writes are synchronous, one event at a time.
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: false,
	}

	logger.Info("Kafka event sink created",
		zap.String("name", name),
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return &KafkaSink{
		name:     name,
		minLevel: minLevel,
		writer:   writer,
		logger:   logger.Named("kafka-events"),
	}, nil
}

// Write publishes one event.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("kafka sink is closed")
	}
	s.mu.Unlock()

	if !event.Level.AtLeast(s.minLevel) {
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RunID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "level", Value: []byte(event.Level)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("failed to write event to Kafka",
			zap.String("error", err.Error()),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return fmt.Errorf("failed to write to Kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

// Name returns the sink identifier.
func (s *KafkaSink) Name() string {
	return s.name
}
