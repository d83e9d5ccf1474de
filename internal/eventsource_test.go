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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/element-hq/typingsrv/api"
)

func TestEventSource_GetNewEvents_OnlyChangedRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(clock)
	source := NewEventSource(store)

	base := source.CurrentPosition()
	until := clock.Now().Add(time.Minute).UnixMilli()
	store.SetTyping(context.Background(), "!room1:a", "@alice:a", until, true)

	events, newPos, err := source.GetNewEvents(context.Background(), "@alice:a", base, 0, []string{"!room1:a", "!room2:a"}, false)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "!room1:a", events[0].RoomID)
	assert.Equal(t, []string{"@alice:a"}, events[0].Content.UserIDs)
	assert.Greater(t, int64(newPos), int64(base))
}

func TestEventSource_GetNewEvents_NoChangesReturnsSamePosition(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(clock)
	source := NewEventSource(store)

	pos := source.CurrentPosition()
	events, newPos, err := source.GetNewEvents(context.Background(), "@alice:a", pos, 0, []string{"!room1:a"}, false)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, pos, newPos)
}
