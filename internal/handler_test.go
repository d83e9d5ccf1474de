// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/setup/config"
)

type fakeMembershipQuerier struct {
	membersByRoom map[string]map[string]bool
	hostsByRoom   map[string][]spec.ServerName
}

func newFakeMembershipQuerier() *fakeMembershipQuerier {
	return &fakeMembershipQuerier{
		membersByRoom: map[string]map[string]bool{},
		hostsByRoom:   map[string][]spec.ServerName{},
	}
}

func (f *fakeMembershipQuerier) join(roomID, userID string) {
	if f.membersByRoom[roomID] == nil {
		f.membersByRoom[roomID] = map[string]bool{}
	}
	f.membersByRoom[roomID][userID] = true
}

func (f *fakeMembershipQuerier) CheckUserInRoom(_ context.Context, roomID, userID string) error {
	if !f.membersByRoom[roomID][userID] {
		return &api.AuthError{Reason: "not a member"}
	}
	return nil
}

func (f *fakeMembershipQuerier) CheckHostInRoom(_ context.Context, roomID string, serverName spec.ServerName) (bool, error) {
	for _, h := range f.hostsByRoom[roomID] {
		if h == serverName {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMembershipQuerier) GetJoinedHostsForRoom(_ context.Context, roomID string) ([]spec.ServerName, error) {
	return f.hostsByRoom[roomID], nil
}

func (f *fakeMembershipQuerier) GetUsersInRoom(_ context.Context, roomID string) ([]string, error) {
	var out []string
	for u := range f.membersByRoom[roomID] {
		out = append(out, u)
	}
	return out, nil
}

func newTestHandler(t *testing.T, clock clockwork.Clock, rsAPI api.MembershipQuerier) (*Handler, *Store) {
	t.Helper()
	cfg := &config.TypingServer{MaxTimeoutMS: 60000}
	store := NewStore(clock)
	return NewHandler(cfg, store, rsAPI), store
}

func TestHandler_StartedTyping_RejectsOtherUser(t *testing.T) {
	rsAPI := newFakeMembershipQuerier()
	h, _ := newTestHandler(t, clockwork.NewFakeClock(), rsAPI)

	err := h.StartedTyping(context.Background(), "@alice:a", api.Requester{UserID: "@bob:a"}, "!room:a", 1000)
	var authErr *api.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestHandler_StartedTyping_RejectsNonMember(t *testing.T) {
	rsAPI := newFakeMembershipQuerier()
	h, _ := newTestHandler(t, clockwork.NewFakeClock(), rsAPI)

	err := h.StartedTyping(context.Background(), "@alice:a", api.Requester{UserID: "@alice:a"}, "!room:a", 1000)
	require.Error(t, err)
}

func TestHandler_StartedTyping_ClampsTimeout(t *testing.T) {
	rsAPI := newFakeMembershipQuerier()
	rsAPI.join("!room:a", "@alice:a")
	clock := clockwork.NewFakeClock()
	h, store := newTestHandler(t, clock, rsAPI)

	err := h.StartedTyping(context.Background(), "@alice:a", api.Requester{UserID: "@alice:a"}, "!room:a", 999999999)
	require.NoError(t, err)

	users := store.UsersTyping("!room:a")
	assert.Contains(t, users, "@alice:a")

	// Clamped to MaxTimeoutMS (60s), so the entry expires just after it.
	clock.BlockUntil(1)
	clock.Advance(61 * time.Second)
	require.Eventually(t, func() bool {
		return len(store.UsersTyping("!room:a")) == 0
	}, time.Second, time.Millisecond, "a timeout above MaxTimeoutMS must be clamped to it")
}

func TestHandler_StoppedTyping_Succeeds(t *testing.T) {
	rsAPI := newFakeMembershipQuerier()
	rsAPI.join("!room:a", "@alice:a")
	clock := clockwork.NewFakeClock()
	h, store := newTestHandler(t, clock, rsAPI)

	require.NoError(t, h.StartedTyping(context.Background(), "@alice:a", api.Requester{UserID: "@alice:a"}, "!room:a", 1000))
	require.NoError(t, h.StoppedTyping(context.Background(), "@alice:a", api.Requester{UserID: "@alice:a"}, "!room:a"))

	assert.Empty(t, store.UsersTyping("!room:a"))
}
