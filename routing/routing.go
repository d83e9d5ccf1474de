// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package routing exposes typingsrv's one federation endpoint,
// PUT /_matrix/federation/v1/send/{txnID}, the same way dendrite's own
// federationapi/routing package wraps a single operation as a
// util.JSONResponse-returning handler mounted on a gorilla/mux router.
package routing

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/gorilla/mux"
	"github.com/matrix-org/gomatrixserverlib"
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/matrix-org/util"

	"github.com/element-hq/typingsrv/api"
)

// transactionDedupeTTL bounds how long a transaction id is remembered for
// idempotency purposes (spec.md §7): a retried transaction within this
// window is acknowledged without being reprocessed.
const transactionDedupeTTL = 5 * time.Minute

// Setup mounts the federation send endpoint on r under pathPrefix, the way
// dendrite's setup/routing.go mounts each component's router under its own
// PathPrefix.
func Setup(r *mux.Router, pathPrefix string, typingAPI api.TypingInternalAPI) {
	seen, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		panic(err)
	}

	h := &sendHandler{typingAPI: typingAPI, seenTransactions: seen}

	v1fed := r.PathPrefix(pathPrefix + "/v1").Subrouter()
	v1fed.Handle("/send/{txnID}", makeHandler(h.send)).Methods(http.MethodPut)
}

type sendHandler struct {
	typingAPI        api.TypingInternalAPI
	seenTransactions *ristretto.Cache
}

func makeHandler(fn func(req *http.Request) util.JSONResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		res := fn(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.Code)
		body, err := json.Marshal(res.JSON)
		if err != nil {
			body, _ = json.Marshal(spec.InternalServerError{})
		}
		_, _ = w.Write(body)
	}
}

// send implements PUT /_matrix/federation/v1/send/{txnID} (spec.md §6): it
// decodes the transaction, validates size limits, dedupes by transaction
// id, and hands every "m.typing" EDU to module G. It never fails on a
// single bad EDU (spec.md §7) — only malformed JSON or an oversized
// transaction produce an error response.
func (h *sendHandler) send(req *http.Request) util.JSONResponse {
	vars := mux.Vars(req)
	txnID := vars["txnID"]

	var txn api.Transaction
	if err := json.NewDecoder(req.Body).Decode(&txn); err != nil {
		return util.JSONResponse{Code: http.StatusBadRequest, JSON: spec.NotJSON("The request body could not be decoded into valid JSON: " + err.Error())}
	}

	if err := ValidateTransactionLimits(len(txn.PDUs), len(txn.EDUs)); err != nil {
		return util.JSONResponse{Code: http.StatusBadRequest, JSON: spec.InvalidParam(err.Error())}
	}

	dedupeKey := GenerateTransactionKey(txn.Origin, gomatrixserverlib.TransactionID(txnID))
	if _, ok := h.seenTransactions.Get(dedupeKey); ok {
		return util.JSONResponse{Code: http.StatusOK, JSON: struct{}{}}
	}
	h.seenTransactions.SetWithTTL(dedupeKey, true, 1, transactionDedupeTTL)

	if err := h.typingAPI.ProcessTransaction(req.Context(), txn); err != nil {
		return util.JSONResponse{Code: http.StatusInternalServerError, JSON: spec.InternalServerError{}}
	}

	return util.JSONResponse{Code: http.StatusOK, JSON: struct{}{}}
}
