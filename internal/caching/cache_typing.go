// Copyright 2024 New Vector Ltd.
// Copyright 2019, 2020 The Matrix.org Foundation C.I.C.
// Copyright 2017, 2018 New Vector Ltd
// Copyright 2017 Vector Creations Ltd
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package caching

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TimeoutCallback is invoked exactly once, on the clock goroutine, when a
// typing user's expiry fires without an intervening RemoveUser/AddTypingUser
// for the same (userID, roomID) pair.
type TimeoutCallback func(userID, roomID string, latestSyncPosition int64)

// typingEntry is a single currently-typing member.
type typingEntry struct {
	expires time.Time
	timer   clockwork.Timer
}

// EDUCache is the in-memory store of who is typing where, and the
// monotonically increasing stream position that every mutation advances.
//
// A room with no typing members is never retained as an empty map entry, and
// a member's expiry (if it has one) lives in the member's own entry: both are
// enforced by the fact that there is only one map, guarded by one mutex.
type EDUCache struct {
	clock clockwork.Clock

	mu                 sync.Mutex
	roomIDToUserID     map[string]map[string]*typingEntry
	latestSyncPosition int64
	roomLatestChange   map[string]int64
	timeoutCallback    TimeoutCallback
}

// NewTypingCache creates a new EDUCache backed by the real wall clock.
func NewTypingCache() *EDUCache {
	return NewTypingCacheWithClock(clockwork.NewRealClock())
}

// NewTypingCacheWithClock creates a new EDUCache driven by the supplied
// clock, so that tests can pump time deterministically instead of sleeping.
func NewTypingCacheWithClock(clock clockwork.Clock) *EDUCache {
	return &EDUCache{
		clock:            clock,
		roomIDToUserID:   make(map[string]map[string]*typingEntry),
		roomLatestChange: make(map[string]int64),
	}
}

// SetTimeoutCallback registers the function called when a typing user's
// expiry fires. Only one callback may be registered; a nil callback is a
// valid no-op.
func (t *EDUCache) SetTimeoutCallback(fn TimeoutCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeoutCallback = fn
}

// Clock returns the clock this cache is driven by, so collaborators that
// compute expiry times (e.g. the typing Handler) agree with the cache on
// what "now" means.
func (t *EDUCache) Clock() clockwork.Clock {
	return t.clock
}

// LatestSyncPosition returns the last stream position allocated.
func (t *EDUCache) LatestSyncPosition() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latestSyncPosition
}

// AddTypingUser marks userID as typing in roomID until expire, allocating and
// returning a new stream position. A nil expire means the entry never times
// out on its own (used by tests and by direct, pre-seeded state); a non-nil
// expire at or before now behaves exactly like RemoveUser, whether or not
// the member was already typing.
//
// If the member is already typing with an expiry at or after the requested
// one, this is a no-op and the current position is returned unchanged.
func (t *EDUCache) AddTypingUser(userID, roomID string, expire *time.Time) int64 {
	now := t.clock.Now()
	if expire != nil && !expire.After(now) {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.removeLocked(userID, roomID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.roomIDToUserID[roomID]
	if !ok {
		users = make(map[string]*typingEntry)
		t.roomIDToUserID[roomID] = users
	}

	if existing, ok := users[userID]; ok && expire != nil && !existing.expires.Before(*expire) {
		return t.latestSyncPosition
	}

	if existing, ok := users[userID]; ok && existing.timer != nil {
		existing.timer.Stop()
	}

	entry := &typingEntry{}
	if expire != nil {
		entry.expires = *expire
		delay := expire.Sub(now)
		entry.timer = t.clock.AfterFunc(delay, func() {
			t.expire(userID, roomID, *expire)
		})
	}
	users[userID] = entry

	return t.advance(roomID)
}

// RemoveUser stops userID typing in roomID. If the member was not present,
// this is a no-op that returns the current position unchanged.
func (t *EDUCache) RemoveUser(userID, roomID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(userID, roomID)
}

// removeLocked must be called with t.mu held.
func (t *EDUCache) removeLocked(userID, roomID string) int64 {
	users, ok := t.roomIDToUserID[roomID]
	if !ok {
		return t.latestSyncPosition
	}
	entry, ok := users[userID]
	if !ok {
		return t.latestSyncPosition
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.roomIDToUserID, roomID)
	}
	return t.advance(roomID)
}

// expire is the clock callback: it removes the member if, and only if, the
// firing timer still matches the expiry it was scheduled for (a later
// AddTypingUser/RemoveUser may have already superseded it).
func (t *EDUCache) expire(userID, roomID string, scheduledFor time.Time) {
	t.mu.Lock()
	users, ok := t.roomIDToUserID[roomID]
	if !ok {
		t.mu.Unlock()
		return
	}
	entry, ok := users[userID]
	if !ok || !entry.expires.Equal(scheduledFor) {
		t.mu.Unlock()
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.roomIDToUserID, roomID)
	}
	newPos := t.advance(roomID)
	cb := t.timeoutCallback
	t.mu.Unlock()

	if cb != nil {
		cb(userID, roomID, newPos)
	}
}

// advance allocates a new stream position and records it against roomID.
// Must be called with t.mu held.
func (t *EDUCache) advance(roomID string) int64 {
	t.latestSyncPosition++
	t.roomLatestChange[roomID] = t.latestSyncPosition
	return t.latestSyncPosition
}

// GetTypingUsers returns a snapshot of the users currently typing in roomID,
// or an empty slice if the room has no typing members.
func (t *EDUCache) GetTypingUsers(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usersLocked(roomID)
}

func (t *EDUCache) usersLocked(roomID string) []string {
	users, ok := t.roomIDToUserID[roomID]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(users))
	for userID := range users {
		out = append(out, userID)
	}
	return out
}

// GetTypingUsersIfUpdatedAfter returns the current typing users for roomID,
// along with whether the room's latest change exceeds after. The user list
// always reflects the current state, never a snapshot at `after` — callers
// that only care about the room set when something changed should check the
// returned bool.
func (t *EDUCache) GetTypingUsersIfUpdatedAfter(roomID string, after int64) ([]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	latest, ok := t.roomLatestChange[roomID]
	if !ok || latest <= after {
		return nil, false
	}
	return t.usersLocked(roomID), true
}
