// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package internal wires together modules A through H into the single
// api.TypingInternalAPI implementation cmd/typingsrv constructs, the same
// way every other dendrite component keeps its real logic under internal/
// and only exposes the api package's interfaces to the outside.
package internal

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/setup/config"
)

// TypingInternalAPI is the concrete, wired-up implementation of
// api.TypingInternalAPI.
type TypingInternalAPI struct {
	cfg         *config.TypingServer
	store       *Store
	handler     *Handler
	eventSource *EventSource
	receiver    *FederationReceiver
}

// NewInternalAPI constructs a fully wired TypingInternalAPI. notifier and
// fedAPI may be nil: a nil notifier simply means no one else is told about
// mutations, and federation sending is already gated by cfg.SendFederation
// independent of whether fedAPI is set.
func NewInternalAPI(
	cfg *config.TypingServer,
	rsAPI api.MembershipQuerier,
	fedAPI api.FederationClient,
	notifier api.Notifier,
	clock clockwork.Clock,
) *TypingInternalAPI {
	store := NewStore(clock)
	store.SetNotifier(notifier)

	sender := NewFederationSender(cfg, rsAPI, fedAPI, clock)
	store.SetFederationEgress(sender)

	return &TypingInternalAPI{
		cfg:         cfg,
		store:       store,
		handler:     NewHandler(cfg, store, rsAPI),
		eventSource: NewEventSource(store),
		receiver:    NewFederationReceiver(cfg, store, rsAPI, clock),
	}
}

func (t *TypingInternalAPI) StartedTyping(ctx context.Context, targetUser string, requester api.Requester, roomID string, timeoutMS int64) error {
	return t.handler.StartedTyping(ctx, targetUser, requester, roomID, timeoutMS)
}

func (t *TypingInternalAPI) StoppedTyping(ctx context.Context, targetUser string, requester api.Requester, roomID string) error {
	return t.handler.StoppedTyping(ctx, targetUser, requester, roomID)
}

func (t *TypingInternalAPI) CurrentPosition() api.StreamPosition {
	return t.eventSource.CurrentPosition()
}

func (t *TypingInternalAPI) GetNewEvents(ctx context.Context, user string, fromKey api.StreamPosition, limit int, roomIDs []string, isGuest bool) ([]api.TypingEvent, api.StreamPosition, error) {
	return t.eventSource.GetNewEvents(ctx, user, fromKey, limit, roomIDs, isGuest)
}

func (t *TypingInternalAPI) ProcessTransaction(ctx context.Context, txn api.Transaction) error {
	return t.receiver.ProcessTransaction(ctx, txn)
}

var _ api.TypingInternalAPI = (*TypingInternalAPI)(nil)
