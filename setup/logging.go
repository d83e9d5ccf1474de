// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package setup holds the process-wide bootstrapping typingsrv's
// cmd/typingsrv/main.go delegates to, mirroring dendrite's own
// setup package: logging configuration, then handing off to
// setup/process, setup/jetstream and setup/config.
package setup

import (
	"github.com/matrix-org/dugong"
	log "github.com/sirupsen/logrus"
)

// SetupLogging installs dendrite's usual logging shape: structured,
// colourised text on stderr for interactive use, plus a daily-rotated file
// hook when logDir is non-empty so long-running deployments don't lose
// history to an unbounded stderr stream.
func SetupLogging(logDir string) {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000",
		FullTimestamp:   true,
	})

	if logDir == "" {
		return
	}

	log.AddHook(dugong.NewFSHook(
		logDir,
		log.InfoLevel,
		&log.TextFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000",
			DisableColors:   true,
		},
		&dugong.DailyRotationScheme{Compress: true},
	))
}
