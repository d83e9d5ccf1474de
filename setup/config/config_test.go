// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsProduceValidConfig(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults(DefaultOpts{Generate: true})
	cfg.Global.ServerName = "test"

	errs := cfg.Verify()
	require.Empty(t, errs)
	assert.False(t, cfg.TypingServer.SendFederation)
	assert.Equal(t, defaultMaxTimeoutMS, cfg.TypingServer.MaxTimeoutMS)
	assert.Same(t, &cfg.Global, cfg.TypingServer.Matrix)
}

func TestVerifyCatchesMissingServerName(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults(DefaultOpts{})

	errs := cfg.Verify()
	assert.Contains(t, errs, `missing config key "global.server_name"`)
}

func TestFederationDomainWhitelist(t *testing.T) {
	var ts TypingServer
	ts.Defaults(DefaultOpts{})

	// nil whitelist allows everything
	assert.True(t, ts.IsAllowed("farm"))

	allowed := []string{"farm", "orchard"}
	ts.FederationDomainWhitelist = &allowed
	assert.True(t, ts.IsAllowed("farm"))
	assert.False(t, ts.IsAllowed("elsewhere"))
}
