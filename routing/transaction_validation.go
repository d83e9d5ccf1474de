// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package routing

import (
	"fmt"

	"github.com/matrix-org/gomatrixserverlib"
	"github.com/matrix-org/gomatrixserverlib/spec"
)

// Matrix's server-server API caps a single transaction at 50 PDUs and 100
// EDUs. https://spec.matrix.org/v1.11/server-server-api/#transactions
const (
	maxPDUsPerTransaction = 50
	maxEDUsPerTransaction = 100
)

// ValidateTransactionLimits rejects a transaction whose PDU or EDU count
// exceeds the federation spec's per-transaction limits, independent of
// typingsrv's own scope: a transaction this oversized is malformed
// regardless of whether any of its EDUs are ones we understand.
func ValidateTransactionLimits(pduCount, eduCount int) error {
	if pduCount > maxPDUsPerTransaction {
		return fmt.Errorf("transaction PDU count %d exceeds limit of %d", pduCount, maxPDUsPerTransaction)
	}
	if eduCount > maxEDUsPerTransaction {
		return fmt.Errorf("transaction EDU count %d exceeds limit of %d", eduCount, maxEDUsPerTransaction)
	}
	return nil
}

// GenerateTransactionKey builds a deduplication key for an inbound
// transaction from its origin and transaction id, null-byte separated so
// that no concatenation of a shorter origin/txnID pair can collide with a
// longer one.
func GenerateTransactionKey(origin spec.ServerName, txnID gomatrixserverlib.TransactionID) string {
	return string(origin) + "\000" + string(txnID)
}
