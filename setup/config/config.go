// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package config holds the YAML-backed configuration for typingsrv, laid
// out the way dendrite's own setup/config package structures each
// component's slice of the overall server config: a Global block shared by
// everything, plus one struct per component with its own Defaults/Verify
// pair.
package config

import (
	"fmt"
	"os"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"gopkg.in/yaml.v2"
)

// DefaultOpts controls how Defaults() methods populate a freshly
// constructed config: Generate is set when producing a sample config file
// for an operator to edit by hand.
type DefaultOpts struct {
	Generate bool
}

// ConfigErrors collects human-readable configuration problems found by
// Verify(), rather than failing fast on the first one.
type ConfigErrors []string

func (e *ConfigErrors) Add(msg string) {
	*e = append(*e, msg)
}

func checkNotEmpty(errs *ConfigErrors, key, value string) {
	if value == "" {
		errs.Add(fmt.Sprintf("missing config key %q", key))
	}
}

func checkPositive(errs *ConfigErrors, key string, value int64) {
	if value < 0 {
		errs.Add(fmt.Sprintf("config key %q must not be negative", key))
	}
}

// Global holds settings shared by every component of the server, the same
// way dendrite's Global block carries ServerName and JetStream addresses
// into every per-component config struct.
type Global struct {
	// ServerName is this homeserver's federation name, e.g. "test" or
	// "matrix.org".
	ServerName spec.ServerName `yaml:"server_name"`

	JetStream JetStream `yaml:"jetstream"`

	// Sentry mirrors dendrite's own top-level Sentry block: error capture is
	// an ambient concern of the whole process, not any one component.
	Sentry Sentry `yaml:"sentry"`
}

// Sentry holds getsentry/sentry-go client configuration.
type Sentry struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// JetStream mirrors dendrite's own setup/jetstream config block: the NATS
// addresses to dial, and a topic prefix so several homeserver instances can
// share one NATS deployment without subject collisions.
type JetStream struct {
	Addresses []string `yaml:"addresses"`
	// TopicPrefix namespaces every JetStream subject this process uses.
	TopicPrefix string `yaml:"topic_prefix"`
	// InMemory selects producers.InMemoryNotifier instead of the
	// NATS-backed TypingProducer/TypingConsumer pair, for single-process
	// deployments that don't need a separate consumer to learn about
	// typing changes.
	InMemory bool `yaml:"in_memory,omitempty"`
}

// Prefixed namespaces a bare subject name with this deployment's topic
// prefix, so several homeserver instances can share a NATS cluster.
func (j *JetStream) Prefixed(subject string) string {
	return j.TopicPrefix + subject
}

// Durable namespaces a durable consumer name the same way.
func (j *JetStream) Durable(name string) string {
	return j.TopicPrefix + name
}

func (c *Global) Defaults(opts DefaultOpts) {
	if opts.Generate {
		c.ServerName = "localhost"
		c.JetStream.InMemory = true
	}
}

func (c *Global) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "global.server_name", string(c.ServerName))
}

// Config is the top-level typingsrv configuration: the Global block plus
// the TypingServer-specific section.
type Config struct {
	Global       Global       `yaml:"global"`
	TypingServer TypingServer `yaml:"typing_server"`
}

func (c *Config) Defaults(opts DefaultOpts) {
	c.Global.Defaults(opts)
	c.TypingServer.Defaults(opts)
	c.TypingServer.Matrix = &c.Global
}

func (c *Config) Verify() ConfigErrors {
	var errs ConfigErrors
	c.Global.Verify(&errs)
	c.TypingServer.Verify(&errs)
	return errs
}

// Load reads and parses a YAML config file from path, applying defaults
// first so that a partially-specified file still produces a usable config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	cfg.Defaults(DefaultOpts{Generate: false})
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.TypingServer.Matrix = &cfg.Global

	if errs := cfg.Verify(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", []string(errs))
	}
	return cfg, nil
}
