// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package main

import (
	"context"

	"github.com/matrix-org/gomatrixserverlib/spec"
	log "github.com/sirupsen/logrus"

	"github.com/element-hq/typingsrv/api"
)

// Room membership and federation transport are deliberately out of scope
// for this component (spec.md §1 Non-goals): a real deployment wires
// typingsrv's api.MembershipQuerier to the roomserver's room membership
// storage, and api.FederationClient to a signed fclient.FederationClient.
// These stand-ins let this binary run standalone; replace them with real
// collaborators when embedding typingsrv in a full homeserver.

type allowAllMembershipQuerier struct{}

func newStubMembershipQuerier() api.MembershipQuerier { return allowAllMembershipQuerier{} }

func (allowAllMembershipQuerier) CheckUserInRoom(context.Context, string, string) error {
	return nil
}

func (allowAllMembershipQuerier) CheckHostInRoom(context.Context, string, spec.ServerName) (bool, error) {
	return true, nil
}

func (allowAllMembershipQuerier) GetJoinedHostsForRoom(context.Context, string) ([]spec.ServerName, error) {
	return nil, nil
}

func (allowAllMembershipQuerier) GetUsersInRoom(context.Context, string) ([]string, error) {
	return nil, nil
}

type loggingFederationClient struct{}

func newStubFederationClient() api.FederationClient { return loggingFederationClient{} }

func (loggingFederationClient) PutJSON(_ context.Context, req api.PutJSONRequest) (int, []byte, error) {
	log.WithFields(log.Fields{
		"destination": string(req.Destination),
		"path":        req.Path,
	}).Debug("typingsrv: stub federation client dropped outbound request")
	return 200, nil, nil
}
