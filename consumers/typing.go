// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package consumers subscribes to the typing notifications published by
// producers.TypingProducer, grounded on syncapi/consumers' subscribe-and-ack
// loop (receipts.go): a durable pull consumer that logs what it learns,
// standing in for a syncapi-shaped long-poll waker in a full deployment.
package consumers

import (
	"context"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/setup/config"
	"github.com/element-hq/typingsrv/setup/jetstream"
	"github.com/element-hq/typingsrv/setup/process"
)

// OnTypingUpdate is invoked for every delivered typing notification.
type OnTypingUpdate func(roomID string, pos api.StreamPosition)

// TypingConsumer durably subscribes to OutputTypingEvent.
type TypingConsumer struct {
	ctx       context.Context
	jetstream nats.JetStreamContext
	topic     string
	durable   string
	onUpdate  OnTypingUpdate
}

func NewTypingConsumer(
	process *process.ProcessContext,
	cfg *config.JetStream,
	js nats.JetStreamContext,
	onUpdate OnTypingUpdate,
) *TypingConsumer {
	return &TypingConsumer{
		ctx:       process.Context(),
		jetstream: js,
		topic:     cfg.Prefixed(jetstream.OutputTypingEvent),
		durable:   cfg.Durable("TypingConsumer"),
		onUpdate:  onUpdate,
	}
}

// Start begins consuming typing update notifications.
func (c *TypingConsumer) Start() error {
	return jetstream.JetStreamConsumer(
		c.ctx, c.jetstream, c.topic, c.durable, 1,
		c.onMessage, nats.DeliverAll(), nats.ManualAck(),
	)
}

func (c *TypingConsumer) onMessage(_ context.Context, msgs []*nats.Msg) bool {
	msg := msgs[0]
	roomID := msg.Header.Get(jetstream.RoomID)

	pos, err := strconv.ParseInt(msg.Header.Get(jetstream.SyncPos), 10, 64)
	if err != nil {
		log.WithError(err).Error("typingsrv: typing consumer received malformed sync position")
		sentry.CaptureException(err)
		return true
	}

	log.WithFields(log.Fields{
		"room_id":    roomID,
		"stream_pos": pos,
	}).Debug("typingsrv: typing consumer received update")

	if c.onUpdate != nil {
		c.onUpdate(roomID, api.StreamPosition(pos))
	}
	return true
}
