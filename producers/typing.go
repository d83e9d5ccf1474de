// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package producers publishes local typing mutations onto JetStream for
// any other local component to observe, mirroring the EDU server's role in
// dendrite's own producers package: the core never talks to JetStream
// directly, a thin producer does.
package producers

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/setup/config"
	"github.com/element-hq/typingsrv/setup/jetstream"
)

// natsMsgIDHeader is the header JetStream uses for its own publish-side
// deduplication window, independent of this repo's txnID-based dedupe on
// the ingress side.
const natsMsgIDHeader = "Nats-Msg-Id"

// TypingProducer implements api.Notifier by publishing a header-only
// message to OutputTypingEvent for every mutation. It carries no body: only
// the room id and new stream position travel, in headers; the user set
// itself is not published.
type TypingProducer struct {
	js    nats.JetStreamContext
	topic string
}

func NewTypingProducer(cfg *config.JetStream, js nats.JetStreamContext) *TypingProducer {
	return &TypingProducer{
		js:    js,
		topic: cfg.Prefixed(jetstream.OutputTypingEvent),
	}
}

// OnNewEvent implements api.Notifier. streamName is published in the
// stream_name header. Rooms beyond the first are ignored: typingsrv only
// ever notifies about a single room per mutation.
func (p *TypingProducer) OnNewEvent(streamName string, newToken api.StreamPosition, rooms []string) {
	if len(rooms) == 0 {
		return
	}
	msg := nats.NewMsg(p.topic)
	msg.Header.Set(jetstream.RoomID, rooms[0])
	msg.Header.Set(jetstream.SyncPos, strconv.FormatInt(int64(newToken), 10))
	msg.Header.Set("stream_name", streamName)
	msg.Header.Set(natsMsgIDHeader, uuid.NewString())

	// Best effort: a lost notification self-heals on the room's next
	// typing mutation, which re-publishes the (now current) state.
	_, _ = p.js.PublishMsg(msg)
}

var _ api.Notifier = (*TypingProducer)(nil)
