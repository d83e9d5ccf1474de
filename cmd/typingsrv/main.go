// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package main

import (
	"flag"
	"net/http"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/element-hq/typingsrv/api"
	"github.com/element-hq/typingsrv/consumers"
	"github.com/element-hq/typingsrv/internal"
	"github.com/element-hq/typingsrv/producers"
	"github.com/element-hq/typingsrv/routing"
	"github.com/element-hq/typingsrv/setup"
	"github.com/element-hq/typingsrv/setup/config"
	"github.com/element-hq/typingsrv/setup/jetstream"
	"github.com/element-hq/typingsrv/setup/process"
)

var (
	configPath = flag.String("config", "typingsrv.yaml", "Path to the typingsrv configuration file")
	bindAddr   = flag.String("http-bind-address", ":8072", "Address to bind the federation HTTP listener to")
	logDir     = flag.String("log-dir", "", "Directory to write rotated log files to; stderr-only if empty")
)

func main() {
	flag.Parse()
	setup.SetupLogging(*logDir)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("typingsrv: failed to load configuration")
	}

	if cfg.Global.Sentry.Enabled {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Global.Sentry.DSN,
			Environment: string(cfg.Global.ServerName),
		}); err != nil {
			log.WithError(err).Error("typingsrv: failed to initialise sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	processCtx := process.NewProcessContext()

	rsAPI := newStubMembershipQuerier()
	fedAPI := newStubFederationClient()

	onUpdate := func(roomID string, pos api.StreamPosition) {
		log.WithFields(log.Fields{"room_id": roomID, "position": pos}).Debug("typingsrv: observed remote typing update")
	}

	var notifier api.Notifier
	if cfg.Global.JetStream.InMemory {
		// Single-process deployment: skip NATS entirely and call back
		// in place, the same way a test harness would.
		notifier = producers.NewInMemoryNotifier(onUpdate)
	} else {
		js, _, err := jetstream.Prepare(processCtx.Context(), &cfg.Global.JetStream)
		if err != nil {
			log.WithError(err).Fatal("typingsrv: failed to connect to jetstream")
		}

		notifier = producers.NewTypingProducer(&cfg.Global.JetStream, js)

		consumer := consumers.NewTypingConsumer(processCtx, &cfg.Global.JetStream, js, onUpdate)
		if err = consumer.Start(); err != nil {
			log.WithError(err).Fatal("typingsrv: failed to start typing consumer")
		}
	}

	typingAPI := internal.NewInternalAPI(&cfg.TypingServer, rsAPI, fedAPI, notifier, clockwork.NewRealClock())

	router := mux.NewRouter().SkipClean(true).UseEncodedPath()
	routing.Setup(router, "/_matrix/federation", typingAPI)

	log.WithField("bind_addr", *bindAddr).Info("typingsrv: listening")
	if err = http.ListenAndServe(*bindAddr, router); err != nil {
		log.WithError(err).Fatal("typingsrv: http listener failed")
	}
}
