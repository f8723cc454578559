// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package services

import (
	"context"
)

// Runner is a background loop that exits when its context is canceled.
// The image cache janitor satisfies this.
type Runner interface {
	Run(ctx context.Context) error
}

// JanitorService adapts a Runner to a named suture service.
type JanitorService struct {
	runner Runner
	name   string
}

// NewJanitorService wraps runner as a supervised service named name.
func NewJanitorService(runner Runner, name string) *JanitorService {
	return &JanitorService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	return j.runner.Run(ctx)
}

// String identifies the service in supervisor logs.
func (j *JanitorService) String() string {
	return j.name
}
