// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package producers

import "github.com/element-hq/typingsrv/api"

// OnTypingUpdate mirrors consumers.OnTypingUpdate: the same callback shape
// is invoked whether a deployment learns about typing updates over
// JetStream or, for a single-process deployment (cfg.JetStream.InMemory),
// directly from the mutation itself.
type OnTypingUpdate func(roomID string, pos api.StreamPosition)

// InMemoryNotifier implements api.Notifier by invoking onUpdate directly,
// standing in for TypingProducer/TypingConsumer when a deployment has no
// NATS cluster to bridge through (spec.md §4.E's notifier is local to one
// process in this mode).
type InMemoryNotifier struct {
	onUpdate OnTypingUpdate
}

// NewInMemoryNotifier constructs an api.Notifier that calls onUpdate
// synchronously, in place, for every mutation.
func NewInMemoryNotifier(onUpdate OnTypingUpdate) *InMemoryNotifier {
	return &InMemoryNotifier{onUpdate: onUpdate}
}

// OnNewEvent implements api.Notifier.
func (n *InMemoryNotifier) OnNewEvent(_ string, newToken api.StreamPosition, rooms []string) {
	if n.onUpdate == nil {
		return
	}
	for _, roomID := range rooms {
		n.onUpdate(roomID, newToken)
	}
}

var _ api.Notifier = (*InMemoryNotifier)(nil)
