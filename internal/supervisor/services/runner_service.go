// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package services

import "context"

// ContextRunner is anything with a blocking, context-canceled Run. The
// WebSocket hub, the delivery sweeper, and the event router all fit.
type ContextRunner interface {
	Run(ctx context.Context) error
}

// RunnerService adapts a ContextRunner to suture.Service under a given
// name.
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRunnerService wraps a ContextRunner for supervision.
func NewRunnerService(name string, runner ContextRunner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (s *RunnerService) String() string {
	return s.name
}
