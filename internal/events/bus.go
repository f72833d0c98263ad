// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tessera-games/lantern/internal/config"
	"github.com/tessera-games/lantern/internal/metrics"
)

// Bus is the event transport. The default transport is an in-process
// gochannel pub/sub; with nats.enabled it becomes NATS JetStream,
// optionally backed by an embedded server so single-instance deploys
// need no external broker.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	embedded   *server.Server
	serializer *Serializer
	breaker    *gobreaker.CircuitBreaker[any]
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates the event bus for the configured transport.
func NewBus(cfg *config.NATSConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	bus := &Bus{
		serializer: NewSerializer(),
		logger:     logger,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        "event-publish",
			MaxRequests: 3,
			Timeout:     15 * time.Second,
		}),
	}

	if cfg == nil || !cfg.Enabled {
		pubsub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger)
		bus.publisher = pubsub
		bus.subscriber = pubsub
		return bus, nil
	}

	url := cfg.URL
	if cfg.Embedded {
		ns, err := startEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		bus.embedded = ns
		url = ns.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, logger)
	if err != nil {
		bus.shutdownEmbedded()
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: "lantern",
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		bus.shutdownEmbedded()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	bus.publisher = pub
	bus.subscriber = sub
	return bus, nil
}

// startEmbeddedServer boots an in-process NATS server with JetStream.
func startEmbeddedServer(cfg *config.NATSConfig) (*server.Server, error) {
	opts := &server.Options{
		ServerName: "lantern-events",
		Host:       "127.0.0.1",
		Port:       -1,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		NoLog:      true,
		NoSigs:     true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}
	return ns, nil
}

// Publish serializes and publishes a quest event. Publish failures trip
// the circuit breaker so a dead broker degrades to fast failures
// instead of stalling request handlers.
func (b *Bus) Publish(ctx context.Context, event *QuestEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	data, err := b.serializer.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("type", event.Type)
	msg.Metadata.Set("track", string(event.Track))
	msg.SetContext(ctx)

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.publisher.Publish(Topic, msg)
	})
	if err != nil {
		metrics.RecordEventPublishError()
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}
	metrics.RecordEventPublished(event.Type)
	return nil
}

// Subscriber exposes the raw subscriber for the router.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// Close shuts the transport down. Safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	err := b.publisher.Close()
	if b.subscriber != nil {
		// gochannel is one object for both sides; avoid double close.
		if _, same := b.publisher.(*gochannel.GoChannel); !same {
			if serr := b.subscriber.Close(); err == nil {
				err = serr
			}
		}
	}
	b.shutdownEmbedded()
	return err
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded.WaitForShutdown()
		b.embedded = nil
	}
}
