// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package config

// TypingServer is the configuration section consumed by the typing core
// (spec.md §6 "Configuration recognized by the core").
type TypingServer struct {
	Matrix *Global `yaml:"-"`

	// SendFederation gates module F (federation egress). Disabled by
	// default, matching the teacher test suite's default homeserver.
	SendFederation bool `yaml:"send_federation"`

	// FederationDomainWhitelist, when non-nil, restricts egress to the
	// listed destination server names; nil means no restriction.
	FederationDomainWhitelist *[]string `yaml:"federation_domain_whitelist"`

	// MaxTimeoutMS clamps the timeout a client may request via
	// started_typing, the same way dendrite's clientapi clamps
	// caller-supplied TTLs against a server-configured ceiling.
	MaxTimeoutMS int64 `yaml:"max_timeout_ms"`

	// RemoteTimeoutMS is the expiry horizon applied to an inbound
	// "typing: true" EDU (spec.md §4.G REMOTE_TIMEOUT_MS).
	RemoteTimeoutMS int64 `yaml:"remote_timeout_ms"`
}

const (
	defaultMaxTimeoutMS    = int64(60000)
	defaultRemoteTimeoutMS = int64(30000)
)

func (c *TypingServer) Defaults(opts DefaultOpts) {
	c.SendFederation = false
	c.MaxTimeoutMS = defaultMaxTimeoutMS
	c.RemoteTimeoutMS = defaultRemoteTimeoutMS
}

func (c *TypingServer) Verify(configErrs *ConfigErrors) {
	checkPositive(configErrs, "typing_server.max_timeout_ms", c.MaxTimeoutMS)
	checkPositive(configErrs, "typing_server.remote_timeout_ms", c.RemoteTimeoutMS)
}

// IsAllowed reports whether destination passes the federation domain
// whitelist, if one is configured.
func (c *TypingServer) IsAllowed(destination string) bool {
	if c.FederationDomainWhitelist == nil {
		return true
	}
	for _, allowed := range *c.FederationDomainWhitelist {
		if allowed == destination {
			return true
		}
	}
	return false
}
