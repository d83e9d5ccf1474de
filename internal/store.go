// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/internal/caching"
)

// federationEgress is the narrow interface Store uses to trigger module F.
// Kept separate from api.FederationClient so Store never has to know about
// transaction shapes or retry options — only "tell this room/user's typing
// state to whoever's listening across federation".
type federationEgress interface {
	Send(ctx context.Context, roomID, userID string, typing bool)
}

// Store is module B+C: the authoritative typing state, backed by
// caching.EDUCache, plus the bookkeeping (spec.md §3 invariant 5) needed to
// replay a member's origin when their entry is reaped by module A rather
// than an explicit stop.
//
// Every public method here runs the allocate+mutate+emit critical section
// spec.md §5 requires: Store.mu is held across the cache mutation and the
// decision of whether to notify/federate, so no observer ever sees a
// position without its corresponding state change. The actual notifier and
// federation calls happen after the lock is released — they are the
// suspension points §5 permits.
type Store struct {
	cache *caching.EDUCache

	mu       sync.Mutex
	origin   map[api.RoomMember]bool
	notifier api.Notifier
	egress   federationEgress
}

// NewStore creates a Store driven by clock. Call SetNotifier and
// SetFederationEgress before any mutation to wire up modules E and F;
// both are optional (a nil notifier or egress is silently skipped), which
// is how tests exercise module B in isolation.
func NewStore(clock clockwork.Clock) *Store {
	s := &Store{
		cache:  caching.NewTypingCacheWithClock(clock),
		origin: make(map[api.RoomMember]bool),
	}
	s.cache.SetTimeoutCallback(s.onExpire)
	return s
}

func (s *Store) SetNotifier(n api.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Store) SetFederationEgress(e federationEgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.egress = e
}

// SetTyping implements spec.md §4.B set_typing. originatedLocally is fixed
// for the lifetime of this typing session: it is remembered so that a
// later expiry (module A) can correctly decide whether to federate the
// implicit stop.
func (s *Store) SetTyping(ctx context.Context, roomID, userID string, untilMS int64, originatedLocally bool) api.StreamPosition {
	until := time.UnixMilli(untilMS)

	s.mu.Lock()
	before := s.cache.LatestSyncPosition()
	pos := s.cache.AddTypingUser(userID, roomID, &until)
	changed := pos != before
	member := api.RoomMember{RoomID: roomID, UserID: userID}
	if changed {
		s.origin[member] = originatedLocally
	}
	notifier, egress := s.notifier, s.egress
	s.mu.Unlock()

	if !changed {
		return api.StreamPosition(pos)
	}
	s.emit(ctx, notifier, egress, roomID, userID, pos, originatedLocally, true)
	return api.StreamPosition(pos)
}

// ClearTyping implements spec.md §4.B clear_typing. Returns the new
// position and whether a mutation actually occurred (spec.md allows
// callers to distinguish a real stop from a no-op on an absent member).
func (s *Store) ClearTyping(ctx context.Context, roomID, userID string, originatedLocally bool) (api.StreamPosition, bool) {
	s.mu.Lock()
	before := s.cache.LatestSyncPosition()
	pos := s.cache.RemoveUser(userID, roomID)
	changed := pos != before
	if changed {
		delete(s.origin, api.RoomMember{RoomID: roomID, UserID: userID})
	}
	notifier, egress := s.notifier, s.egress
	s.mu.Unlock()

	if !changed {
		return api.StreamPosition(pos), false
	}
	s.emit(ctx, notifier, egress, roomID, userID, pos, originatedLocally, false)
	return api.StreamPosition(pos), true
}

// onExpire is module A's callback firing into module B: it looks and acts
// exactly like an explicit stop from the outside (spec.md §4.A), including
// replaying whatever origin the expired entry was set with.
func (s *Store) onExpire(userID, roomID string, newPos int64) {
	s.mu.Lock()
	member := api.RoomMember{RoomID: roomID, UserID: userID}
	originatedLocally := s.origin[member]
	delete(s.origin, member)
	notifier, egress := s.notifier, s.egress
	s.mu.Unlock()

	s.emit(context.Background(), notifier, egress, roomID, userID, newPos, originatedLocally, false)
}

func (s *Store) emit(
	ctx context.Context,
	notifier api.Notifier,
	egress federationEgress,
	roomID, userID string,
	pos int64,
	originatedLocally, typing bool,
) {
	origin := "remote"
	if originatedLocally {
		origin = "local"
	}
	kind := "stop"
	if typing {
		kind = "start"
	}
	typingMutationsTotal.WithLabelValues(origin, kind).Inc()
	typingUsersGauge.WithLabelValues(roomID).Set(float64(len(s.cache.GetTypingUsers(roomID))))

	if notifier != nil {
		notifier.OnNewEvent("typing_key", api.StreamPosition(pos), []string{roomID})
	}
	if originatedLocally && egress != nil {
		egress.Send(ctx, roomID, userID, typing)
	}
}

// Clock returns the clock driving expiry, so collaborators (module H) can
// compute an absolute deadline from a relative timeout consistently with
// the Store's own notion of "now".
func (s *Store) Clock() clockwork.Clock {
	return s.cache.Clock()
}

// UsersTyping implements spec.md §4.B users_typing.
func (s *Store) UsersTyping(roomID string) []string {
	return s.cache.GetTypingUsers(roomID)
}

// CurrentPosition implements spec.md §4.C / §4.D current_key.
func (s *Store) CurrentPosition() api.StreamPosition {
	return api.StreamPosition(s.cache.LatestSyncPosition())
}

// UsersIfUpdatedAfter is used by the Event Source (module D) to answer
// "did this room change since `after`, and if so what's the current set".
func (s *Store) UsersIfUpdatedAfter(roomID string, after api.StreamPosition) ([]string, bool) {
	return s.cache.GetTypingUsersIfUpdatedAfter(roomID, int64(after))
}
