package humm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/hummpay/infra/store"
	"github.com/mstgnz/hummpay/provider"
	"github.com/shopspring/decimal"
)

// minRePostDelay is how long an order must exist before the payment can be retried.
const minRePostDelay = 5 * time.Second

// PostProcessResult tells the checkout where to redirect the customer.
type PostProcessResult struct {
	RedirectURL string
	Notice      string
	Errors      []string
}

// PostProcessPayment starts the provider checkout for a placed order. On
// failure the customer is sent to the order details page with a generic notice.
func (s *Service) PostProcessPayment(ctx context.Context, order *store.Order) (PostProcessResult, error) {
	result, err := s.CreatePayment(ctx, order)
	if err != nil {
		return PostProcessResult{}, err
	}
	if result.Success {
		return PostProcessResult{RedirectURL: result.RedirectURL}, nil
	}

	s.log.AddField("order_id", order.ID).Error(
		fmt.Sprintf("%s: Error when creating the Humm payment transaction for order #%s", SystemName, order.CustomOrderNumber),
		errors.New(strings.Join(result.Errors, "; ")),
	)
	return PostProcessResult{
		RedirectURL: s.orderDetailsURL(order.ID),
		Notice:      NoticeInvalidPayment,
		Errors:      result.Errors,
	}, nil
}

// HidePaymentMethod hides the method at checkout while the store has no session.
func (s *Service) HidePaymentMethod() bool {
	return !s.IsConfigured()
}

// Refund refunds amount and records the new payment status on the order.
// A refund of less than the remaining total is partial.
func (s *Service) Refund(ctx context.Context, order *store.Order, amount decimal.Decimal) (store.PaymentStatus, []string, error) {
	if order == nil {
		return "", nil, fmt.Errorf("%w: order is required", provider.ErrInvalidArgument)
	}
	if !amount.IsPositive() {
		return "", []string{"The refund amount must be greater than zero."}, nil
	}
	remaining := order.OrderTotal.Sub(order.RefundedAmount)
	if amount.GreaterThan(remaining) {
		return "", []string{fmt.Sprintf("The refund amount %s exceeds the refundable amount %s.", amount, remaining)}, nil
	}

	result, err := s.RefundOrder(ctx, order, amount)
	if err != nil {
		return "", nil, err
	}
	if !result.Success {
		return "", result.Errors, nil
	}

	status := store.PaymentRefunded
	if amount.LessThan(remaining) {
		status = store.PaymentPartiallyRefunded
	}
	if err := s.platform.ApplyRefund(ctx, order.ID, amount, status); err != nil {
		return "", nil, fmt.Errorf("record refund of order %d: %w", order.ID, err)
	}
	return status, nil, nil
}

// CanRePostProcessPayment reports whether the customer may retry the payment.
func (s *Service) CanRePostProcessPayment(order *store.Order, now time.Time) (bool, error) {
	if order == nil {
		return false, fmt.Errorf("%w: order is required", provider.ErrInvalidArgument)
	}
	if !s.IsConfigured() {
		return false, nil
	}
	return now.Sub(order.CreatedOnUTC) >= minRePostDelay, nil
}

// AdditionalHandlingFee returns the configured fee for a cart subtotal,
// either fixed or a percentage rounded to cents.
func (s *Service) AdditionalHandlingFee(subtotal decimal.Decimal) decimal.Decimal {
	settings := s.client.Settings()
	if settings.AdditionalFee.IsZero() {
		return decimal.Zero
	}
	if settings.AdditionalFeePercentage {
		return subtotal.Mul(settings.AdditionalFee).Div(decimal.NewFromInt(100)).Round(2)
	}
	return settings.AdditionalFee
}

func (s *Service) orderDetailsURL(orderID int64) string {
	return fmt.Sprintf("%s/orders/%d", strings.TrimRight(s.opts.CallbackBaseURL, "/"), orderID)
}
