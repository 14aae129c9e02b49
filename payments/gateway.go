// Package payments defines the payment gateway collaborator. The real
// processor integration lives outside this service; handlers only see the
// Gateway contract.
package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Gateway is the external payment processor contract.
type Gateway interface {
	// Authorize places a hold for the order amount and returns a payment
	// reference.
	Authorize(ctx context.Context, orderNumber string, amount decimal.Decimal, paymentMethodID string) (string, error)
	// Capture settles a previously authorized payment.
	Capture(ctx context.Context, ref string) error
	// Refund returns captured funds to the customer.
	Refund(ctx context.Context, ref string, amount decimal.Decimal) error
}

// DevGateway is an in-process gateway for development and tests: every call
// succeeds and is logged.
type DevGateway struct {
	log *logrus.Logger
}

func NewDevGateway(log *logrus.Logger) *DevGateway {
	return &DevGateway{log: log}
}

func (g *DevGateway) Authorize(_ context.Context, orderNumber string, amount decimal.Decimal, paymentMethodID string) (string, error) {
	ref := "pay_" + uuid.NewString()[:8]
	g.log.WithFields(logrus.Fields{
		"order_number":      orderNumber,
		"amount":            amount.StringFixed(2),
		"payment_method_id": paymentMethodID,
		"payment_ref":       ref,
	}).Info("payment authorized")
	return ref, nil
}

func (g *DevGateway) Capture(_ context.Context, ref string) error {
	g.log.WithField("payment_ref", ref).Info("payment captured")
	return nil
}

func (g *DevGateway) Refund(_ context.Context, ref string, amount decimal.Decimal) error {
	g.log.WithFields(logrus.Fields{
		"payment_ref": ref,
		"amount":      amount.StringFixed(2),
	}).Info("payment refunded")
	return nil
}
