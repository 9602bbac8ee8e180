package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/tarekmz/stopgame/go/internal/room"
)

const (
	streamName    = "STOP_ROOMS"
	subjectPrefix = "stop.rooms"

	natsMaxReconnects = 10
	natsReconnectWait = 2 * time.Second
	publishTimeout    = 2 * time.Second
)

// Publisher mirrors room events onto a JetStream stream so operators can
// tail, replay, or audit what rooms are doing. Publishing is best effort: a
// down broker never affects a session. A nil *Publisher is a disabled mirror.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS, ensures the room-events stream exists, and returns a
// Publisher.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Mirror of room lifecycle and round events",
		Subjects:    []string{subjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	log.Info().Str("url", url).Str("stream", streamName).Msg("event mirror connected")
	return &Publisher{nc: nc, js: js}, nil
}

// Publish mirrors one event. Errors are logged and swallowed.
func (p *Publisher) Publish(ev *room.Event) {
	if p == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal mirrored event")
		return
	}
	subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, ev.RoomCode, ev.Type)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if _, err := p.js.Publish(ctx, subject, data); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("failed to mirror event")
		}
	}()
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.nc.Close()
}
