// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package upstream

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/metrics"
	"github.com/harborstay/harborstay/internal/models"
)

// BreakerClient wraps a Client with a circuit breaker so a failing upstream
// API cannot tie up every import worker in timeouts.
//
// The breaker uses real time for its interval and timeout calculations;
// tests exercise the wrapped client directly.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

var _ Client = (*BreakerClient)(nil)

// NewBreakerClient wraps client with circuit breaker protection.
// The circuit opens after a 60% failure rate over at least 10 requests,
// stays open for two minutes, then admits up to 3 probe requests.
func NewBreakerClient(client Client) *BreakerClient {
	const cbName = "upstream-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,     // reset counts every minute while closed
		Timeout:     2 * time.Minute, // open -> half-open after two minutes

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},

		IsSuccessful: func(err error) bool {
			// Not-found and rate-limited are upstream policy responses,
			// not availability failures; they must not trip the breaker.
			return err == nil || IsNotFound(err) || IsRateLimited(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().
				Str("from", fromStr).
				Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute runs fn through the circuit breaker and records the outcome.
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
		logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
	}
	return result, err
}

// ListCustomerListings delegates through the circuit breaker.
func (bc *BreakerClient) ListCustomerListings(ctx context.Context, customerID string) ([]models.UpstreamListing, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.ListCustomerListings(ctx, customerID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.UpstreamListing), nil
}

// FetchListingDetails delegates through the circuit breaker.
func (bc *BreakerClient) FetchListingDetails(ctx context.Context, customerID, listingID string) (*models.UpstreamListing, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.FetchListingDetails(ctx, customerID, listingID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.UpstreamListing), nil
}

// FetchListingImages delegates through the circuit breaker.
func (bc *BreakerClient) FetchListingImages(ctx context.Context, customerID, listingID string) ([]models.ListingPhoto, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.FetchListingImages(ctx, customerID, listingID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.ListingPhoto), nil
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
