package humm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mstgnz/hummpay/infra/store"
)

// CheckoutAction tells the HTTP layer where to send the customer.
type CheckoutAction string

const (
	ActionHome         CheckoutAction = "home"
	ActionOrderDetails CheckoutAction = "order_details"
	ActionCompleted    CheckoutAction = "completed"
)

// CheckoutOutcome is the result of processing a provider redirect.
// Reason is for server logs only; customers only ever see Notice.
type CheckoutOutcome struct {
	Action CheckoutAction
	Order  *store.Order
	Notice string
	Reason string
}

// checkoutError marks a failure after the order was identified, so the
// customer is shown the order instead of the home page.
type checkoutError struct {
	trackingID string
	msg        string
}

func (e *checkoutError) Error() string { return e.msg }

// ConfirmCheckout handles the customer returning from the provider after paying.
func (s *Service) ConfirmCheckout(ctx context.Context, token uuid.UUID, req ConfirmPaymentRequest) CheckoutOutcome {
	order, action, err := s.confirm(ctx, token, req)
	if err == nil {
		return CheckoutOutcome{Action: action, Order: order}
	}

	s.logCallbackError("Order confirmation failed", err)
	var cerr *checkoutError
	if errors.As(err, &cerr) {
		found, lookupErr := s.GetOrderByExternalID(ctx, cerr.trackingID)
		if lookupErr != nil || found == nil {
			return CheckoutOutcome{Action: ActionHome, Notice: NoticeInvalidPayment, Reason: err.Error()}
		}
		return CheckoutOutcome{Action: ActionOrderDetails, Order: found, Notice: NoticeInvalidPayment, Reason: err.Error()}
	}
	return CheckoutOutcome{Action: ActionHome, Reason: err.Error()}
}

// confirm returns the paid order. Payments already in a refund state are left alone.
func (s *Service) confirm(ctx context.Context, token uuid.UUID, req ConfirmPaymentRequest) (*store.Order, CheckoutAction, error) {
	customer, err := s.callbackCustomer(ctx, token, "order confirmation")
	if err != nil {
		return nil, ActionHome, err
	}

	trackingID := req.TrackingID()
	if trackingID == "" {
		return nil, ActionHome, errors.New("order confirmation: parameters are in an incorrect format")
	}

	order, err := s.GetOrderByExternalID(ctx, trackingID)
	if err != nil {
		return nil, ActionHome, fmt.Errorf("order confirmation: %w", err)
	}
	if order == nil {
		return nil, ActionHome, fmt.Errorf("order confirmation: order with the payment transaction number '%s' is not found", trackingID)
	}
	if order.CustomerID != customer.ID {
		return nil, ActionHome, errors.New("order confirmation: the current customer doesn't match the customer who placed the order")
	}

	failed := func(format string, args ...any) error {
		prefix := fmt.Sprintf("order confirmation: payment transaction '%s' (order '%s') ", trackingID, order.CustomOrderNumber)
		return &checkoutError{trackingID: trackingID, msg: prefix + fmt.Sprintf(format, args...)}
	}

	result, err := s.GetTransactionByID(ctx, trackingID)
	if err != nil {
		return nil, ActionOrderDetails, failed("failed. %v", err)
	}
	tx := result.Transaction
	if !result.Success || tx == nil || !tx.Success || tx.Status == nil || *tx.Status == StatusUnknown {
		details := strings.Join(result.Errors, "; ")
		if tx != nil && tx.Error != nil {
			details = strings.TrimSpace(details + " " + tx.Error.String())
		}
		return nil, ActionOrderDetails, failed("failed. %s", details)
	}

	switch status := *tx.Status; {
	case status == StatusCompleted:
		if req.PaymentAmount != nil && !req.PaymentAmount.Equal(order.OrderTotal) {
			return nil, ActionOrderDetails, failed("amount mismatch. Order total is %s, but was paid %s", order.OrderTotal, req.PaymentAmount)
		}
		if order.CanMarkAsPaid() {
			if err := s.platform.MarkOrderAsPaid(ctx, order.ID, trackingID); err != nil {
				return nil, ActionOrderDetails, failed("could not be marked as paid. %v", err)
			}
		}
		if err := s.platform.SaveAttribute(ctx, store.KeyGroupOrder, order.ID, TrackingIDAttribute, "", 0); err != nil {
			return nil, ActionOrderDetails, failed("tracking id could not be cleared. %v", err)
		}
		paid, err := s.platform.GetOrderByID(ctx, order.ID)
		if err != nil {
			return nil, ActionOrderDetails, failed("could not be reloaded. %v", err)
		}
		return paid, ActionCompleted, nil
	case status.IsRefund():
		return nil, ActionHome, nil
	default:
		return nil, ActionOrderDetails, failed("%s", status)
	}
}

// CancelCheckout handles the customer abandoning the checkout at the provider.
func (s *Service) CancelCheckout(ctx context.Context, token uuid.UUID, req CancelRequest) CheckoutOutcome {
	order, err := s.cancel(ctx, token, req)
	if err != nil {
		s.logCallbackError("Order cancellation failed", err)
		return CheckoutOutcome{Action: ActionHome, Reason: err.Error()}
	}
	return CheckoutOutcome{Action: ActionOrderDetails, Order: order}
}

func (s *Service) cancel(ctx context.Context, token uuid.UUID, req CancelRequest) (*store.Order, error) {
	customer, err := s.callbackCustomer(ctx, token, "order cancellation")
	if err != nil {
		return nil, err
	}

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, errors.New("order cancellation: parameters are in an incorrect format")
	}

	order, err := s.GetOrderByExternalID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order cancellation: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("order cancellation: order with the payment transaction number '%s' is not found", orderID)
	}
	if order.CustomerID != customer.ID {
		return nil, errors.New("order cancellation: the current customer doesn't match the customer who placed the order")
	}

	if order.CanCancel() {
		if err := s.platform.CancelOrder(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("order cancellation: %w", err)
		}
		if order, err = s.platform.GetOrderByID(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("order cancellation: %w", err)
		}
	}
	return order, nil
}

func (s *Service) callbackCustomer(ctx context.Context, token uuid.UUID, stage string) (*store.Customer, error) {
	customer, err := s.platform.GetCustomerByGUID(ctx, token)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", stage, err)
	}
	if customer == nil || !customer.Active || customer.Deleted {
		return nil, fmt.Errorf("%s: no customer found with GUID '%s'", stage, token)
	}
	return customer, nil
}

func (s *Service) logCallbackError(message string, err error) {
	if !s.client.Settings().LogIpnErrors {
		return
	}
	s.log.Error(SystemName+": "+message, err)
}
