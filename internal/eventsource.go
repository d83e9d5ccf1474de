// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"context"

	"github.com/element-hq/typingsrv/api"
)

// EventSource is module D: it turns the current typing state into the
// incremental /sync-shaped event list a client's sync loop asks for,
// grounded on dendrite's syncapi/streams TypingStreamProvider.
//
// EventSource never authorizes a room on its own: callers (the syncapi in a
// full deployment) are assumed to have already restricted roomIDs to ones
// the requesting user can see. typingsrv's own scope ends at "is this user
// a member of this room" when state is first mutated (module H); re-serving
// already-known typing state to a sync request is not re-checked here.
type EventSource struct {
	store *Store
}

func NewEventSource(store *Store) *EventSource {
	return &EventSource{store: store}
}

// CurrentPosition implements spec.md §4.D current_key.
func (s *EventSource) CurrentPosition() api.StreamPosition {
	return s.store.CurrentPosition()
}

// GetNewEvents implements spec.md §4.D get_new_events: for every room in
// roomIDs whose typing state changed after fromKey, emit one m.typing event
// carrying the room's full current user_ids set. isGuest and user are
// accepted for interface parity with dendrite's other event sources but
// unused: typing state carries no per-user visibility restriction beyond
// room membership, already enforced upstream.
func (s *EventSource) GetNewEvents(
	_ context.Context,
	_ string,
	fromKey api.StreamPosition,
	limit int,
	roomIDs []string,
	_ bool,
) ([]api.TypingEvent, api.StreamPosition, error) {
	newPos := fromKey
	var events []api.TypingEvent

	for _, roomID := range roomIDs {
		userIDs, updated := s.store.UsersIfUpdatedAfter(roomID, fromKey)
		if !updated {
			continue
		}
		events = append(events, api.TypingEvent{
			Type:   "m.typing",
			RoomID: roomID,
			Content: api.TypingEventContent{
				UserIDs: userIDs,
			},
		})
		if limit > 0 && len(events) >= limit {
			break
		}
	}

	if len(events) > 0 {
		newPos = s.store.CurrentPosition()
	}
	return events, newPos, nil
}
