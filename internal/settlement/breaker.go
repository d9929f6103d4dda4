package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachwise/coachwise/internal/circuitbreaker"
)

// BreakerGateway wraps a Gateway with a circuit breaker keyed by
// processor name, so a processor outage fails fast instead of holding
// dispute transitions open until the HTTP timeout.
type BreakerGateway struct {
	inner   Gateway
	breaker *circuitbreaker.Breaker
}

func WithBreaker(inner Gateway, breaker *circuitbreaker.Breaker) *BreakerGateway {
	return &BreakerGateway{inner: inner, breaker: breaker}
}

func (g *BreakerGateway) Name() string { return g.inner.Name() }

func (g *BreakerGateway) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	key := g.inner.Name()
	if !g.breaker.Allow(key) {
		return nil, fmt.Errorf("%w: circuit open for %s", ErrGatewayUnavailable, key)
	}
	res, err := g.inner.Refund(ctx, req)
	if err != nil {
		// Rejections are the processor answering; only availability
		// failures should trip the circuit.
		if errors.Is(err, ErrGatewayUnavailable) {
			g.breaker.RecordFailure(key)
		} else {
			g.breaker.RecordSuccess(key)
		}
		return nil, err
	}
	g.breaker.RecordSuccess(key)
	return res, nil
}

var _ Gateway = (*BreakerGateway)(nil)
