package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/events"
)

// LiveRoom is the room every live-page viewer sits in; change hints go there.
const LiveRoom = "live"

// JetStreamConsumerConfig holds configuration for the live event consumer.
type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConsumerConfig returns default consumer settings.
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "LIVE_EVENTS",
		ConsumerName:  "live-gateway",
		SubjectFilter: "live.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer consumes live events from JetStream and turns them into
// "live_cambio" hints for connected viewers.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	js                jetstream.JetStream
	consumer          jetstream.Consumer
	consumeCtx        jetstream.ConsumeContext
	config            JetStreamConsumerConfig
}

// NewEventConsumer connects to NATS and binds the durable gateway consumer.
func NewEventConsumer(cm *ConnectionManager, config JetStreamConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		js:                js,
		config:            config,
	}

	if err := ec.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Live gateway WebSocket consumer",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
	}

	consumer, err := stream.Consumer(ctx, ec.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", ec.config.ConsumerName).
			Str("stream", ec.config.StreamName).
			Msg("created JetStream consumer")
	}

	ec.consumer = consumer
	return nil
}

// Start begins consuming live events until the context is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		ec.handleMessage(msg)
	})
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	ec.consumeCtx = consumeCtx

	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Msg("live event consumer started")

	<-ctx.Done()
	return nil
}

func (ec *EventConsumer) handleMessage(msg jetstream.Msg) {
	var event events.LiveEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal live event")
		msg.Term()
		return
	}

	switch event.Type {
	case events.EventTypeLiveChanged:
		// The hint carries no payload on the wire; viewers re-fetch state.
		frame, err := LiveChangedFrame()
		if err != nil {
			log.Error().Err(err).Msg("failed to build live_cambio frame")
			msg.Nak()
			return
		}
		ec.connectionManager.BroadcastToRoom(LiveRoom, frame)
		log.Debug().Str("event_id", event.ID).Msg("live change hint broadcast")
	default:
		log.Debug().Str("type", string(event.Type)).Msg("ignoring unknown live event")
	}

	msg.Ack()
}

// Stop drains the consumer and the NATS connection.
func (ec *EventConsumer) Stop() error {
	if ec.consumeCtx != nil {
		ec.consumeCtx.Stop()
	}
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
