package settlement

import (
	"context"

	"github.com/coachwise/coachwise/internal/idgen"
	"github.com/coachwise/coachwise/internal/logging"
)

// NoopGateway acknowledges refunds without contacting a processor. Used in
// demo mode when no Stripe key is configured.
type NoopGateway struct{}

func (NoopGateway) Name() string { return "noop" }

func (NoopGateway) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	if err := req.Amount.Validate(); err != nil {
		return nil, err
	}
	logging.L(ctx).Info("demo refund issued",
		"processorRef", req.ProcessorRef,
		"amount", req.Amount.String())
	return &Result{
		OutcomeID:      idgen.WithPrefix("re"),
		Status:         "succeeded",
		AmountRefunded: req.Amount,
	}, nil
}

var _ Gateway = NoopGateway{}
