package notify

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/journeywatch/internal/metrics"
	"github.com/ppiankov/journeywatch/internal/model"
)

// deliveryTimeout bounds one event's webhook retries and Kafka publish.
const deliveryTimeout = 30 * time.Second

// Fanout delivers new-alert events to every configured sink. Delivery runs
// in background goroutines; failures are logged and counted, never returned.
type Fanout struct {
	mu        sync.RWMutex
	webhooks  []WebhookConfig
	kafkaCfg  KafkaConfig
	publisher Publisher

	newPublisher  func(KafkaConfig) Publisher
	kafkaFallback KafkaConfig
	logger        *zap.Logger
	metrics       *metrics.Collector
	wg            sync.WaitGroup
}

// FanoutOption configures a Fanout.
type FanoutOption func(*Fanout)

// WithPublisherFactory overrides how Kafka publishers are built.
func WithPublisherFactory(f func(KafkaConfig) Publisher) FanoutOption {
	return func(n *Fanout) { n.newPublisher = f }
}

// WithKafkaFallback sets the Kafka section used whenever the notifier
// config does not enable one, e.g. brokers supplied through the environment.
func WithKafkaFallback(k KafkaConfig) FanoutOption {
	return func(n *Fanout) { n.kafkaFallback = k }
}

func WithFanoutLogger(l *zap.Logger) FanoutOption {
	return func(n *Fanout) { n.logger = l }
}

func WithFanoutMetrics(m *metrics.Collector) FanoutOption {
	return func(n *Fanout) { n.metrics = m }
}

// NewFanout creates a Fanout for cfg.
func NewFanout(cfg Config, opts ...FanoutOption) *Fanout {
	n := &Fanout{
		newPublisher: func(k KafkaConfig) Publisher { return NewKafkaPublisher(k) },
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	n.Reload(cfg)
	return n
}

// Reload swaps in a new configuration. A changed Kafka section replaces
// the publisher; the old one is closed.
func (n *Fanout) Reload(cfg Config) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.webhooks = append([]WebhookConfig(nil), cfg.Webhooks...)
	if !cfg.Kafka.Enabled() {
		cfg.Kafka = n.kafkaFallback
	}

	if reflect.DeepEqual(cfg.Kafka, n.kafkaCfg) && (n.publisher != nil || !cfg.Kafka.Enabled()) {
		return
	}
	if n.publisher != nil {
		if err := n.publisher.Close(); err != nil {
			n.logger.Warn("close kafka publisher", zap.Error(err))
		}
		n.publisher = nil
	}
	n.kafkaCfg = cfg.Kafka
	if cfg.Kafka.Enabled() {
		n.publisher = n.newPublisher(cfg.Kafka)
	}
}

// AlertCreated schedules delivery of a to every matching sink.
func (n *Fanout) AlertCreated(ctx context.Context, a model.Alert, d model.DecisionOutput) {
	event := NewEvent(a, d)

	n.mu.RLock()
	webhooks := n.webhooks
	publisher := n.publisher
	n.mu.RUnlock()

	// Delivery outlives the request that created the alert.
	ctx = context.WithoutCancel(ctx)

	for _, w := range webhooks {
		if !w.matches(event.Priority) {
			continue
		}
		n.deliver(ctx, "webhook", event, func(ctx context.Context) error {
			return Send(ctx, w, event)
		})
	}
	if publisher != nil {
		n.deliver(ctx, "kafka", event, func(ctx context.Context) error {
			return publisher.Publish(ctx, event)
		})
	}
}

func (n *Fanout) deliver(ctx context.Context, sink string, event AlertEvent, send func(context.Context) error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		defer cancel()

		if err := send(ctx); err != nil {
			n.metrics.NotifyFailed(sink)
			n.logger.Warn("alert notification failed",
				zap.String("sink", sink),
				zap.String("alert_id", event.AlertID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every scheduled delivery has finished.
func (n *Fanout) Wait() {
	n.wg.Wait()
}

// Close waits for pending deliveries and closes the Kafka publisher.
func (n *Fanout) Close() error {
	n.wg.Wait()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.publisher == nil {
		return nil
	}
	err := n.publisher.Close()
	n.publisher = nil
	return err
}
