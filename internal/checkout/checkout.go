// Package checkout buys drucoins: create a PayPal order, let the user approve
// it in the browser, then capture it and update the session balance.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/naveenspark/arcana/pkg/client"
	"github.com/naveenspark/arcana/pkg/domain"
)

var (
	// ErrDeclined means PayPal or the backend refused the capture.
	ErrDeclined = errors.New("checkout: payment declined")
	// ErrCancelled means the user abandoned the approval step.
	ErrCancelled = errors.New("checkout: cancelled")
)

// Payments is the order API.
type Payments interface {
	CreateOrder(ctx context.Context) (*domain.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*domain.Capture, error)
}

// Balance receives the captured balance.
type Balance interface {
	SetBalance(n int)
}

// Approver shows the approval page and blocks until the user says they are
// done. It returns false when the user gives up.
type Approver interface {
	Approve(ctx context.Context, approvalURL string) (bool, error)
}

// DefaultApproveBase is PayPal's buyer approval page.
const DefaultApproveBase = "https://www.paypal.com/checkoutnow"

// Flow runs one purchase. Nothing is retried.
type Flow struct {
	Payments    Payments
	Balance     Balance
	Approver    Approver
	ApproveBase string
	Log         *zap.Logger
}

// Run performs the purchase and returns the capture.
func (f *Flow) Run(ctx context.Context) (*domain.Capture, error) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}

	order, err := f.Payments.CreateOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout.Run: %w", err)
	}
	log.Info("order created", zap.String("order", order.ID))

	ok, err := f.Approver.Approve(ctx, f.approvalURL(order.ID))
	if err != nil {
		return nil, fmt.Errorf("checkout.Run: approve: %w", err)
	}
	if !ok {
		return nil, ErrCancelled
	}

	capture, err := f.Payments.CaptureOrder(ctx, order.ID)
	if errors.Is(err, client.ErrRejected) {
		log.Warn("capture declined", zap.String("order", order.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrDeclined, err)
	}
	if err != nil {
		return nil, fmt.Errorf("checkout.Run: %w", err)
	}
	f.Balance.SetBalance(capture.Drucoins)
	log.Info("order captured", zap.String("order", order.ID), zap.Int("drucoins", capture.Drucoins))
	return capture, nil
}

func (f *Flow) approvalURL(orderID string) string {
	base := f.ApproveBase
	if base == "" {
		base = DefaultApproveBase
	}
	return base + "?" + url.Values{"token": {orderID}}.Encode()
}
