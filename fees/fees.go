package fees

import (
	"context"
	"log"
	"strings"

	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/metrics"
)

const transferMarker = "transfer"

// Fee lookup outcomes
const (
	OutcomeActive = "active"
	OutcomeNone   = "none"
	OutcomeFailed = "failed"
)

type Lister interface {
	ListCharges(ctx context.Context, token backend.Token) (charges []backend.Charge, err error)
}

type Config struct {
	// Source of the configured charges
	Lister Lister
	// Optional metrics
	Metrics *metrics.Metrics
}

type Resolver struct {
	lister  Lister
	metrics *metrics.Metrics
}

func New(config Config) (r *Resolver) {
	return &Resolver{
		lister:  config.Lister,
		metrics: config.Metrics,
	}
}

// Select returns the first active charge whose name mentions a transfer
func Select(charges []backend.Charge) (charge backend.Charge, found bool) {
	for _, charge := range charges {
		if !strings.Contains(strings.ToLower(charge.Name), transferMarker) {
			continue
		}
		if !strings.EqualFold(string(charge.Status), string(backend.ChargeStatusActive)) {
			continue
		}
		return charge, true
	}
	return charge, false
}

// Resolve returns the active transfer fee. Any failure yields a zero fee:
// a broken charges listing must never block a payment.
func (r *Resolver) Resolve(ctx context.Context, token backend.Token) (fee uint64) {
	charges, err := r.lister.ListCharges(ctx, token)
	if err != nil {
		log.Println("WARN|RESOLVING|FEE", err)
		r.metrics.ObserveFeeLookup(OutcomeFailed)
		return 0
	}

	charge, found := Select(charges)
	if !found {
		r.metrics.ObserveFeeLookup(OutcomeNone)
		return 0
	}

	r.metrics.ObserveFeeLookup(OutcomeActive)
	return charge.Amount
}
