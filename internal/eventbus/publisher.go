// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher is closed")

const breakerName = "event-publisher"

// Publisher publishes session events with circuit breaker protection.
type Publisher struct {
	publisher message.Publisher
	cb        *gobreaker.CircuitBreaker[interface{}]
	prefix    string

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a publisher for cfg: NATS JetStream when cfg.NATSURL
// is set, otherwise an in-process gochannel.
func NewPublisher(cfg *config.EventsConfig) (*Publisher, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	if cfg.NATSURL == "" {
		pub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return NewPublisherWith(pub, cfg.TopicPrefix), nil
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("fleetlink"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	return NewPublisherWith(pub, cfg.TopicPrefix), nil
}

// NewPublisherWith wraps an existing watermill publisher.
func NewPublisherWith(pub message.Publisher, prefix string) *Publisher {
	if prefix == "" {
		prefix = "fleet"
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Publisher{publisher: pub, cb: cb, prefix: prefix}
}

// Topic returns the full topic name for a suffix.
func (p *Publisher) Topic(suffix string) string {
	return p.prefix + "." + suffix
}

// PublishLoadComplete publishes the one-shot load-complete event.
func (p *Publisher) PublishLoadComplete(ctx context.Context, ev LoadComplete) error {
	return p.publishJSON(ctx, p.Topic(TopicLoadComplete), ev, nil)
}

// PublishVehicleChanged publishes a vehicle change.
func (p *Publisher) PublishVehicleChanged(ctx context.Context, ev VehicleChanged) error {
	return p.publishJSON(ctx, p.Topic(TopicVehicleChanged), ev, map[string]string{"vehicle_id": ev.VehicleID})
}

func (p *Publisher) publishJSON(ctx context.Context, topic string, v interface{}, meta map[string]string) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	for k, val := range meta {
		msg.Metadata.Set(k, val)
	}
	return p.Publish(topic, msg)
}

// Publish sends msg to topic through the breaker.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	metrics.RecordEventPublished(topic, err)
	return err
}

// Close shuts the underlying publisher down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
