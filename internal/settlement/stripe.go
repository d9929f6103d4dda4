package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/coachwise/coachwise/internal/money"
)

// StripeGateway issues refunds against Stripe payment intents.
type StripeGateway struct {
	sc *client.API
}

func NewStripeGateway(apiKey string) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeGateway{sc: sc}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ProcessorRef),
		Amount:        stripe.Int64(req.Amount.Cents),
		Currency:      stripe.String(strings.ToLower(req.Amount.Currency)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	ref, err := g.sc.Refunds.New(params)
	if err != nil {
		return nil, mapRefundError(ctx, err)
	}
	if ref.Status == stripe.RefundStatusFailed || ref.Status == stripe.RefundStatusCanceled {
		return nil, fmt.Errorf("%w: refund %s is %s", ErrRefundRejected, ref.ID, ref.Status)
	}
	return &Result{
		OutcomeID:      ref.ID,
		Status:         string(ref.Status),
		AmountRefunded: money.New(ref.Amount, string(ref.Currency)),
	}, nil
}

// mapRefundError translates a Stripe client error into the gateway's
// sentinel errors. Connection failures surface as api_error (or as plain
// transport errors when the context died); any other typed error is the
// processor answering no.
func mapRefundError(ctx context.Context, err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		if sErr.Type == stripe.ErrorTypeAPI {
			return fmt.Errorf("%w: %s", ErrGatewayUnavailable, sErr.Msg)
		}
		return fmt.Errorf("%w: %s", ErrRefundRejected, sErr.Msg)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return fmt.Errorf("stripe refund: %w", err)
}

var _ Gateway = (*StripeGateway)(nil)
