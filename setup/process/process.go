// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package process tracks the lifetime of a running typingsrv process,
// the same role dendrite's own setup/process package plays for every
// other component: a cancellable root context plus a count of
// in-flight components, so that shutdown can wait for them to drain.
package process

import (
	"context"
	"sync"
)

// ProcessContext is handed to the long-running pieces of the server (in
// cmd/typingsrv, the JetStream connection and the typing consumer) so that
// a single Shutdown call can cancel all of them and wait for a clean exit.
type ProcessContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewProcessContext creates a ProcessContext rooted in context.Background.
func NewProcessContext() *ProcessContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessContext{ctx: ctx, cancel: cancel}
}

// Context returns the root context for this process. It is cancelled when
// Shutdown is called.
func (p *ProcessContext) Context() context.Context {
	return p.ctx
}

// ComponentStarted must be called before a long-running goroutine begins
// its work, and ComponentFinished when it exits, so that ShutdownDone can
// block until every component has wound down.
func (p *ProcessContext) ComponentStarted() {
	p.wg.Add(1)
}

func (p *ProcessContext) ComponentFinished() {
	p.wg.Done()
}

// Shutdown cancels the root context. Components are expected to observe
// ctx.Done() and call ComponentFinished once they have stopped.
func (p *ProcessContext) Shutdown() {
	p.cancel()
}

// ShutdownDone blocks until every started component has called
// ComponentFinished.
func (p *ProcessContext) ShutdownDone() {
	p.wg.Wait()
}
