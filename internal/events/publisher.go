package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/pkg/event"
)

// DefaultQueueSize bounds pending notifications when Config.QueueSize is zero.
const DefaultQueueSize = 1024

// Config contains Kafka publisher configuration.
type Config struct {
	BootstrapServers []string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	AWSRegion        string
	Topic            string
	Source           string
	QueueSize        int
}

// MetricsCollector defines metrics operations for the publisher.
type MetricsCollector interface {
	IncEventsPublished(kind, status string)
}

// Publisher delivers lifecycle notifications. Publish must not block.
type Publisher interface {
	Publish(ev event.Lifecycle)
	Close() error
}

// NopPublisher discards every notification.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(event.Lifecycle) {}

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// KafkaPublisher sends lifecycle CloudEvents to a Kafka topic.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	queue    chan event.Lifecycle
	done     chan struct{}
	logger   *slog.Logger
	metrics  MetricsCollector
	mu       sync.RWMutex
	closed   bool
}

// NewKafkaPublisher creates a publisher backed by a sarama SyncProducer.
func NewKafkaPublisher(cfg Config, logger *slog.Logger, metrics MetricsCollector) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	if err := configureSecurity(saramaConfig, cfg); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("event publisher created",
		"bootstrap_servers", cfg.BootstrapServers,
		"security_protocol", cfg.SecurityProtocol,
		"topic", cfg.Topic,
	)

	return newKafkaPublisher(producer, cfg, logger, metrics), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, cfg Config, logger *slog.Logger, metrics MetricsCollector) *KafkaPublisher {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	p := &KafkaPublisher{
		producer: producer,
		topic:    cfg.Topic,
		source:   cfg.Source,
		queue:    make(chan event.Lifecycle, size),
		done:     make(chan struct{}),
		logger:   logger,
		metrics:  metrics,
	}
	go p.run()
	return p
}

// Publish queues a notification. It drops the notification when the queue
// is full or the publisher is closed.
func (p *KafkaPublisher) Publish(ev event.Lifecycle) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.record(ev.Kind, "dropped")
		return
	}

	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("event queue full, dropping notification",
			"kind", ev.Kind,
			"buffer_id", ev.BufferID,
		)
		p.record(ev.Kind, "dropped")
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		if err := p.send(ev); err != nil {
			p.logger.Error("failed to publish lifecycle event",
				"error", err,
				"kind", ev.Kind,
				"buffer_id", ev.BufferID,
			)
			p.record(ev.Kind, "failed")
			continue
		}
		p.record(ev.Kind, "sent")
	}
}

func (p *KafkaPublisher) send(ev event.Lifecycle) error {
	ce, err := NewCloudEvent(p.source, ev)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to marshal CloudEvent: %w", err)
	}

	// Keyed by buffer id so one buffer's notifications stay ordered.
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.BufferID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("ce_specversion"), Value: []byte(ce.SpecVersion())},
			{Key: []byte("ce_type"), Value: []byte(ce.Type())},
			{Key: []byte("ce_source"), Value: []byte(ce.Source())},
			{Key: []byte("ce_id"), Value: []byte(ce.ID())},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Debug("published lifecycle event",
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
		"event_id", ce.ID(),
		"kind", ev.Kind,
		"buffer_id", ev.BufferID,
	)
	return nil
}

func (p *KafkaPublisher) record(kind event.Kind, status string) {
	if p.metrics != nil {
		p.metrics.IncEventsPublished(string(kind), status)
	}
}

// Close stops accepting notifications, drains the queue and closes the producer.
// Closing twice returns ErrPublisherClosed.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return apperrors.ErrPublisherClosed
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.logger.Info("closing event publisher")

	if err := p.producer.Close(); err != nil {
		p.logger.Error("error closing producer", "error", err)
		return err
	}
	return nil
}
