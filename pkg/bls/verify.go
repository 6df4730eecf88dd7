package bls

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/macro-cli/internal/resilience"
)

// Verifier checks series existence against the API. It satisfies the
// series validator's Checker.
type Verifier struct {
	client  *Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewVerifier creates a Verifier issuing at most perSecond checks per
// second. The breaker stops checks after repeated upstream failures; a
// nil breaker gets a default one.
func NewVerifier(c *Client, perSecond float64, burst int, breaker *resilience.CircuitBreaker) *Verifier {
	if burst < 1 {
		burst = 1
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "bls.verify"})
	}
	return &Verifier{
		client:  c,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		breaker: breaker,
	}
}

// Exists reports whether id returns any data in the last two years. An
// error means the API could not answer, including an open circuit.
func (v *Verifier) Exists(ctx context.Context, id string) (bool, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return false, eris.Wrap(err, "bls: verify wait")
	}
	year := v.client.now().Year()
	series, err := resilience.ExecuteVal(ctx, v.breaker, func(ctx context.Context) ([]apiSeries, error) {
		return v.client.fetch(ctx, []string{id}, year-1, year)
	})
	if err != nil {
		return false, eris.Wrapf(err, "bls: verify %s", id)
	}
	for _, s := range series {
		if s.SeriesID == id && len(s.Data) > 0 {
			return true, nil
		}
	}
	return false, nil
}
