// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package api declares the public surface of typingsrv: the internal API
// other components call into (spec.md §4.D, §4.H), and the narrow
// collaborator interfaces the core depends on (spec.md §6) — a notifier, a
// membership oracle, and a federation transport. Real implementations of
// the collaborators live outside this module's core (storage, HTTP
// routing, crypto verification are all out of scope per spec.md §1); tests
// substitute small in-memory fakes.
package api

import (
	"context"
	"encoding/json"

	"github.com/matrix-org/gomatrixserverlib/spec"
)

// RoomMember is the unit of typing state: a (room, user) pair. Equality is
// structural, so it is safe to use as a map key directly.
type RoomMember struct {
	RoomID string
	UserID string
}

// StreamPosition is a non-negative, monotonically increasing stream id
// (spec.md §3).
type StreamPosition int64

// Requester identifies the caller of a Handler operation. UserID must
// equal TargetUser for started_typing/stopped_typing to be authorized
// (spec.md §4.H).
type Requester struct {
	UserID string
}

// AuthError is returned when a requester is not entitled to change a
// target user's typing state (spec.md §7).
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "typingsrv: auth error: " + e.Reason }

// MalformedEduError marks an inbound EDU with missing or wrongly-typed
// fields; the transaction containing it is still accepted (spec.md §7).
type MalformedEduError struct {
	Reason string
}

func (e *MalformedEduError) Error() string { return "typingsrv: malformed edu: " + e.Reason }

// UnauthorizedOriginError marks an inbound EDU whose claimed user or room
// membership doesn't match the transaction's origin server; the
// transaction is still accepted (spec.md §7).
type UnauthorizedOriginError struct {
	Reason string
}

func (e *UnauthorizedOriginError) Error() string {
	return "typingsrv: unauthorized origin: " + e.Reason
}

// Notifier is the Local Notifier Bridge's single-method contract
// (spec.md §4.E, §6, §9 "do not build a pub/sub framework"). It is called
// exactly once per successful mutation.
type Notifier interface {
	OnNewEvent(streamName string, newToken StreamPosition, rooms []string)
}

// MembershipQuerier is the membership oracle the core consults for
// authorization and federation fan-out (spec.md §6). A real implementation
// is backed by room-membership storage, out of scope here.
type MembershipQuerier interface {
	// CheckUserInRoom returns a non-nil *AuthError if userID is not a
	// member of roomID.
	CheckUserInRoom(ctx context.Context, roomID, userID string) error
	CheckHostInRoom(ctx context.Context, roomID string, serverName spec.ServerName) (bool, error)
	GetJoinedHostsForRoom(ctx context.Context, roomID string) ([]spec.ServerName, error)
	GetUsersInRoom(ctx context.Context, roomID string) ([]string, error)
}

// PutJSONRequest carries the parameters a real fclient.FederationClient
// would need for a retrying PUT (spec.md §6).
type PutJSONRequest struct {
	Destination           spec.ServerName
	Path                  string
	Body                  interface{}
	LongRetries           bool
	BackoffOn404          bool
	TryTrailingSlashOn400 bool
}

// FederationClient is the one-method federation transport abstraction
// (spec.md §9): retries and backoff live inside the implementation, never
// in the core.
type FederationClient interface {
	PutJSON(ctx context.Context, req PutJSONRequest) (statusCode int, body []byte, err error)
}

// EDU is a single Ephemeral Data Unit inside a federation transaction.
type EDU struct {
	EDUType string          `json:"edu_type"`
	Content json.RawMessage `json:"content"`
}

// Transaction is a parsed inbound federation transaction (spec.md §4.G).
type Transaction struct {
	Origin         spec.ServerName   `json:"origin"`
	OriginServerTS spec.Timestamp    `json:"origin_server_ts"`
	PDUs           []json.RawMessage `json:"pdus"`
	EDUs           []EDU             `json:"edus"`
}

// TypingEDUContent is the body of an "m.typing" EDU, both outbound
// (spec.md §4.F) and inbound (spec.md §4.G).
type TypingEDUContent struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

// EDUTypeTyping is the Matrix EDU type this server speaks.
const EDUTypeTyping = "m.typing"

// TypingEventContent is the content of the client-facing typing event
// (spec.md §6 "Event wire shape").
type TypingEventContent struct {
	UserIDs []string `json:"user_ids"`
}

// TypingEvent is the wire shape returned by GetNewEvents (spec.md §4.D,
// §6).
type TypingEvent struct {
	Type    string             `json:"type"`
	RoomID  string             `json:"room_id"`
	Content TypingEventContent `json:"content"`
}

// TypingInternalAPI is the façade other components call: module H's public
// operations, plus module D's event source, exposed together the way
// dendrite's per-component "InternalAPI" interfaces bundle a component's
// whole external contract in one place.
type TypingInternalAPI interface {
	// StartedTyping implements spec.md §4.H started_typing.
	StartedTyping(ctx context.Context, targetUser string, requester Requester, roomID string, timeoutMS int64) error
	// StoppedTyping implements spec.md §4.H stopped_typing.
	StoppedTyping(ctx context.Context, targetUser string, requester Requester, roomID string) error

	// CurrentPosition implements spec.md §4.D current_key.
	CurrentPosition() StreamPosition
	// GetNewEvents implements spec.md §4.D get_new_events.
	GetNewEvents(ctx context.Context, user string, fromKey StreamPosition, limit int, roomIDs []string, isGuest bool) ([]TypingEvent, StreamPosition, error)

	// ProcessTransaction implements spec.md §4.G: it applies every
	// "m.typing" EDU in txn, silently dropping ones that fail validation,
	// and never fails the transaction as a whole.
	ProcessTransaction(ctx context.Context, txn Transaction) error
}
