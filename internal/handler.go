// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"
	"time"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/setup/config"
)

// Handler is module H: the client-facing façade that authorizes a request
// before ever touching the Store, grounded on dendrite's userapi/internal
// handler pattern of a thin struct wrapping a config and its collaborators.
type Handler struct {
	cfg   *config.TypingServer
	store *Store
	rsAPI api.MembershipQuerier
}

func NewHandler(cfg *config.TypingServer, store *Store, rsAPI api.MembershipQuerier) *Handler {
	return &Handler{cfg: cfg, store: store, rsAPI: rsAPI}
}

// StartedTyping implements spec.md §4.H started_typing: the requester must
// be the target user (no one may set typing state on another user's
// behalf), and the target must be a current member of the room. The
// requested timeout is clamped to cfg.MaxTimeoutMS before being handed to
// the Store.
func (h *Handler) StartedTyping(ctx context.Context, targetUser string, requester api.Requester, roomID string, timeoutMS int64) error {
	if requester.UserID != targetUser {
		return &api.AuthError{Reason: "cannot set typing state for another user"}
	}
	if err := h.rsAPI.CheckUserInRoom(ctx, roomID, targetUser); err != nil {
		return err
	}

	if timeoutMS <= 0 || timeoutMS > h.cfg.MaxTimeoutMS {
		timeoutMS = h.cfg.MaxTimeoutMS
	}

	untilMS := h.store.Clock().Now().Add(time.Duration(timeoutMS) * time.Millisecond).UnixMilli()
	h.store.SetTyping(ctx, roomID, targetUser, untilMS, true)
	return nil
}

// StoppedTyping implements spec.md §4.H stopped_typing.
func (h *Handler) StoppedTyping(ctx context.Context, targetUser string, requester api.Requester, roomID string) error {
	if requester.UserID != targetUser {
		return &api.AuthError{Reason: "cannot clear typing state for another user"}
	}
	if err := h.rsAPI.CheckUserInRoom(ctx, roomID, targetUser); err != nil {
		return err
	}

	h.store.ClearTyping(ctx, roomID, targetUser, true)
	return nil
}
