// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package internal

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics mirror the internal/httputil rate limiter's counter-vec style:
// package-level collectors registered once, updated from the hot path with
// no allocation beyond the label lookup.
var (
	typingUsersGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "typingsrv",
			Subsystem: "store",
			Name:      "typing_users",
			Help:      "Current number of users typing, by room.",
		},
		[]string{"room_id"},
	)
	typingMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "typingsrv",
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Total typing state mutations applied, by origin and kind.",
		},
		[]string{"origin", "kind"},
	)
	federationSendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "typingsrv",
			Subsystem: "federation",
			Name:      "send_total",
			Help:      "Total outbound typing EDUs sent, by result.",
		},
		[]string{"result"},
	)
	federationDropTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "typingsrv",
			Subsystem: "federation",
			Name:      "inbound_dropped_total",
			Help:      "Total inbound typing EDUs dropped, by reason.",
		},
		[]string{"reason"},
	)
)

var registerMetricsOnce sync.Once

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(
			typingUsersGauge,
			typingMutationsTotal,
			federationSendTotal,
			federationDropTotal,
		)
	})
}

func init() {
	registerMetrics()
}
