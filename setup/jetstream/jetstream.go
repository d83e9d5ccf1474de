// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package jetstream wires up the NATS JetStream connection used as the
// Local Notifier Bridge's ambient transport (spec.md §4.E) — the core
// itself only ever calls the one-method api.Notifier interface; this
// package provides the connection, subject and header names, and the
// pull-consumer loop that producers.TypingProducer and
// consumers.TypingConsumer build on, following the same shape as
// dendrite's own syncapi/consumers, which durable-subscribe to subjects
// like OutputReceiptEvent.
package jetstream

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/element-hq/typingsrv/setup/config"
)

// OutputTypingEvent is the subject a typing mutation is published to for
// any interested local component (e.g. a syncapi-shaped consumer) to pick
// up, independent of the core's own in-process api.Notifier call.
const OutputTypingEvent = "OutputTypingEvent"

// Header names for OutputTypingEvent messages. TypingProducer sets RoomID
// and SyncPos; UserID and Typing are not set on published messages.
const (
	UserID  = "user_id"
	RoomID  = "room_id"
	Typing  = "typing"
	SyncPos = "sync_position"
)

// Prepare connects to the configured NATS deployment and returns a
// JetStreamContext ready for Publish/Subscribe calls. Callers that honour
// cfg.InMemory skip calling Prepare altogether and construct a
// producers.InMemoryNotifier instead: standing up an embedded nats-server
// is out of scope for this component.
func Prepare(process context.Context, cfg *config.JetStream) (nats.JetStreamContext, *nats.Conn, error) {
	url := joinAddresses(cfg.Addresses)
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, nil, err
	}
	return js, nc, nil
}

func joinAddresses(addrs []string) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ","
		}
		out += a
	}
	return out
}

// OnMessageFunc processes a batch of delivered messages and returns true if
// the batch should be acknowledged.
type OnMessageFunc func(ctx context.Context, msgs []*nats.Msg) bool

// JetStreamConsumer starts a durable pull consumer on topic, invoking fn
// for every delivered message until ctx is cancelled. It mirrors the
// subscribe-and-ack loop dendrite's syncapi consumers all share.
func JetStreamConsumer(
	ctx context.Context,
	js nats.JetStreamContext,
	topic, durable string,
	batch int,
	fn OnMessageFunc,
	opts ...nats.SubOpt,
) error {
	sub, err := js.PullSubscribe(topic, durable, opts...)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(batch, nats.MaxWait(time.Second))
			if err != nil {
				if err != nats.ErrTimeout {
					log.WithError(err).Warn("jetstream: fetch failed")
				}
				continue
			}
			if len(msgs) == 0 {
				continue
			}

			if fn(ctx, msgs) {
				for _, msg := range msgs {
					_ = msg.Ack()
				}
			} else {
				for _, msg := range msgs {
					_ = msg.Nak()
				}
			}
		}
	}()

	return nil
}
