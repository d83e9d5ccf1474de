// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/gomatrixserverlib/spec"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/internal/util"
	"github.com/element-hq/typingsrv/setup/config"
)

// FederationReceiver is module G: it applies "m.typing" EDUs from an
// inbound transaction to the Store, grounded on the validation posture of
// federationapi/routing's transaction handling — a malformed or
// unauthorized EDU is dropped and logged, never fails the transaction.
type FederationReceiver struct {
	cfg   *config.TypingServer
	store *Store
	rsAPI api.MembershipQuerier
	clock clockwork.Clock
}

func NewFederationReceiver(cfg *config.TypingServer, store *Store, rsAPI api.MembershipQuerier, clock clockwork.Clock) *FederationReceiver {
	return &FederationReceiver{cfg: cfg, store: store, rsAPI: rsAPI, clock: clock}
}

// ProcessTransaction implements spec.md §4.G: every "m.typing" EDU in txn is
// validated and applied independently; other EDU types are ignored (they
// belong to other components not in scope here).
func (r *FederationReceiver) ProcessTransaction(ctx context.Context, txn api.Transaction) error {
	for _, edu := range txn.EDUs {
		if edu.EDUType != api.EDUTypeTyping {
			continue
		}
		if err := r.applyTypingEDU(ctx, txn.Origin, edu); err != nil {
			federationDropTotal.WithLabelValues(dropReason(err)).Inc()
			// gjson pulls room_id straight off the raw content for the log
			// line even when it didn't parse cleanly enough to satisfy
			// api.TypingEDUContent, the same best-effort field peek
			// dendrite's sync v4 room data uses on raw state content.
			log.WithError(err).WithFields(log.Fields{
				"origin":  string(txn.Origin),
				"room_id": gjson.GetBytes(edu.Content, "room_id").String(),
			}).Debug("typingsrv: dropped inbound typing EDU")
		}
	}
	return nil
}

func (r *FederationReceiver) applyTypingEDU(ctx context.Context, origin spec.ServerName, edu api.EDU) error {
	var content api.TypingEDUContent
	if err := json.Unmarshal(edu.Content, &content); err != nil {
		return &api.MalformedEduError{Reason: "invalid json: " + err.Error()}
	}
	if content.RoomID == "" || content.UserID == "" {
		return &api.MalformedEduError{Reason: "missing room_id or user_id"}
	}

	userDomain, err := domainOf(content.UserID)
	if err != nil {
		return &api.MalformedEduError{Reason: err.Error()}
	}
	if util.NormalizeServerName(spec.ServerName(userDomain)) != util.NormalizeServerName(origin) {
		return &api.UnauthorizedOriginError{Reason: "user_id domain does not match transaction origin"}
	}

	isMember, err := r.rsAPI.CheckHostInRoom(ctx, content.RoomID, origin)
	if err != nil {
		return err
	}
	if !isMember {
		return &api.UnauthorizedOriginError{Reason: "origin is not a member of room_id"}
	}

	if content.Typing {
		// spec.md §4.G: remote typing notifications carry no explicit
		// duration, so an entry is kept alive by the remote server's own
		// repeated EDUs and reaped locally by the configured
		// REMOTE_TIMEOUT_MS ceiling rather than a per-EDU timeout field.
		until := r.clock.Now().Add(time.Duration(r.cfg.RemoteTimeoutMS) * time.Millisecond)
		r.store.SetTyping(ctx, content.RoomID, content.UserID, until.UnixMilli(), false)
	} else {
		r.store.ClearTyping(ctx, content.RoomID, content.UserID, false)
	}
	return nil
}

// domainOf extracts the server name portion of a Matrix user id
// ("@alice:example.org" -> "example.org").
func domainOf(userID string) (string, error) {
	id, err := spec.NewUserID(userID, false)
	if err != nil {
		return "", err
	}
	return string(id.Domain()), nil
}

func dropReason(err error) string {
	switch err.(type) {
	case *api.MalformedEduError:
		return "malformed"
	case *api.UnauthorizedOriginError:
		return "unauthorized_origin"
	default:
		return "internal_error"
	}
}
