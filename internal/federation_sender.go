// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/gomatrixserverlib/spec"
	log "github.com/sirupsen/logrus"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/setup/config"
)

// outboundTransaction is the minimal shape of a federation transaction body
// this server ever sends: it carries no PDUs, only the single typing EDU.
type outboundTransaction struct {
	Origin         spec.ServerName   `json:"origin"`
	OriginServerTS spec.Timestamp    `json:"origin_server_ts"`
	PDUs           []json.RawMessage `json:"pdus"`
	EDUs           []api.EDU         `json:"edus"`
}

// FederationSender is module F: it turns a locally-originated mutation into
// an outbound "m.typing" EDU to every other server joined to the room,
// grounded on federationapi/queue's per-destination PutJSON fire pattern,
// collapsed here to a synchronous best-effort send per spec.md §4.F (no
// retry queue: a dropped typing notification self-heals on the next
// keystroke).
type FederationSender struct {
	cfg    *config.TypingServer
	rsAPI  api.MembershipQuerier
	fedAPI api.FederationClient
	clock  clockwork.Clock
}

func NewFederationSender(
	cfg *config.TypingServer,
	rsAPI api.MembershipQuerier,
	fedAPI api.FederationClient,
	clock clockwork.Clock,
) *FederationSender {
	return &FederationSender{cfg: cfg, rsAPI: rsAPI, fedAPI: fedAPI, clock: clock}
}

// Send implements the federationEgress interface Store calls into. It is a
// no-op when federation sending is disabled in config (spec.md §4.F) or no
// federation client is set.
func (f *FederationSender) Send(ctx context.Context, roomID, userID string, typing bool) {
	if f == nil || !f.cfg.SendFederation || f.fedAPI == nil {
		return
	}

	hosts, err := f.rsAPI.GetJoinedHostsForRoom(ctx, roomID)
	if err != nil {
		log.WithError(err).WithField("room_id", roomID).Warn("typingsrv: failed to resolve joined hosts for federation")
		return
	}

	content := api.TypingEDUContent{RoomID: roomID, UserID: userID, Typing: typing}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		log.WithError(err).Warn("typingsrv: failed to marshal typing EDU content")
		return
	}

	for _, host := range hosts {
		if host == f.cfg.Matrix.ServerName {
			continue
		}
		if !f.cfg.IsAllowed(string(host)) {
			continue
		}
		f.sendTo(ctx, host, contentJSON)
	}
}

func (f *FederationSender) sendTo(ctx context.Context, destination spec.ServerName, content json.RawMessage) {
	txn := outboundTransaction{
		Origin:         f.cfg.Matrix.ServerName,
		OriginServerTS: spec.AsTimestamp(f.clock.Now()),
		PDUs:           []json.RawMessage{},
		EDUs: []api.EDU{{
			EDUType: api.EDUTypeTyping,
			Content: content,
		}},
	}

	path := "/_matrix/federation/v1/send/" + f.txnID()
	_, _, err := f.fedAPI.PutJSON(ctx, api.PutJSONRequest{
		Destination:           destination,
		Path:                  path,
		Body:                  txn,
		LongRetries:           true,
		BackoffOn404:          true,
		TryTrailingSlashOn400: true,
	})
	if err != nil {
		federationSendTotal.WithLabelValues("error").Inc()
		log.WithError(err).WithField("destination", string(destination)).Debug("typingsrv: federation typing send failed")
		return
	}
	federationSendTotal.WithLabelValues("ok").Inc()
}

// txnID derives a transaction id from the clock the same way dendrite's
// queue does: a monotonically non-decreasing wall-clock millisecond stamp
// is unique enough in practice and lets a FakeClock-driven test assert on
// it deterministically.
func (f *FederationSender) txnID() string {
	return strconv.FormatInt(f.clock.Now().UnixMilli(), 10)
}
