package humm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of every date field.
const DateLayout = "2006-01-02"

// Amount is a decimal that travels as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	return a.Decimal.UnmarshalJSON(data)
}

// Date is a calendar date serialized as yyyy-MM-dd.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON accepts yyyy-MM-dd as well as full RFC 3339 timestamps.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := parseDate(raw)
	if err != nil {
		return err
	}
	d.Time = parsed
	return nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t, nil
}

// PaymentStatus is the canonical status of a checkout in the provider system.
type PaymentStatus int

const (
	StatusUnknown PaymentStatus = iota
	StatusNotFound
	StatusNotStarted
	StatusInProgress
	StatusCompleted
	StatusCancelled
	StatusRefunded
	StatusRefundInProgress
	StatusPartiallyRefunded
	StatusRefundRequested
)

// statusWire lists the accepted wire strings per status. The first one is emitted.
var statusWire = map[PaymentStatus][]string{
	StatusNotFound:          {"TRACKING_ID_NOT_FOUND", "NOT_FOUND"},
	StatusNotStarted:        {"NOT_STARTED"},
	StatusInProgress:        {"IN_PROGRESS", "PENDING"},
	StatusCompleted:         {"PAYMENT_DONE", "COMPLETED"},
	StatusCancelled:         {"PAYMENT_CANCELLED", "CANCELLED"},
	StatusRefunded:          {"CUSTOMER_REFUNDED", "REFUNDED"},
	StatusRefundInProgress:  {"REFUND_IN_PROGRESS"},
	StatusPartiallyRefunded: {"PARTIAL_REFUND_COMPLETED", "PARTIALLY_REFUNDED"},
	StatusRefundRequested:   {"FULL_REFUND_REQUESTED", "REFUND_REQUESTED"},
}

var statusNames = map[PaymentStatus]string{
	StatusUnknown:           "Unknown",
	StatusNotFound:          "NotFound",
	StatusNotStarted:        "NotStarted",
	StatusInProgress:        "InProgress",
	StatusCompleted:         "Completed",
	StatusCancelled:         "Cancelled",
	StatusRefunded:          "Refunded",
	StatusRefundInProgress:  "RefundInProgress",
	StatusPartiallyRefunded: "PartiallyRefunded",
	StatusRefundRequested:   "RefundRequested",
}

var wireToStatus = func() map[string]PaymentStatus {
	m := make(map[string]PaymentStatus)
	for status, values := range statusWire {
		for _, v := range values {
			m[v] = status
		}
	}
	return m
}()

// ParsePaymentStatus maps a wire string to a status. Unknown values map to StatusUnknown.
func ParsePaymentStatus(value string) PaymentStatus {
	return wireToStatus[strings.ToUpper(strings.TrimSpace(value))]
}

func (s PaymentStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "PaymentStatus(" + strconv.Itoa(int(s)) + ")"
}

// Wire returns the string sent to the provider for s.
func (s PaymentStatus) Wire() string {
	if values, ok := statusWire[s]; ok {
		return values[0]
	}
	return ""
}

// IsRefund reports whether s is one of the refund states.
func (s PaymentStatus) IsRefund() bool {
	switch s {
	case StatusRefunded, StatusRefundInProgress, StatusPartiallyRefunded, StatusRefundRequested:
		return true
	}
	return false
}

func (s PaymentStatus) MarshalJSON() ([]byte, error) {
	if s == StatusUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(s.Wire())
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = StatusUnknown
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	*s = ParsePaymentStatus(raw)
	return nil
}

// PrerequisitesResponse is the token endpoint response.
type PrerequisitesResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
}

// TransactionError is the structured error of a failed provider operation.
type TransactionError struct {
	ID      string `json:"errorId,omitempty"`
	Code    string `json:"errorCode,omitempty"`
	Message string `json:"errorMessage,omitempty"`
}

func (e *TransactionError) String() string {
	if e == nil {
		return ""
	}
	var parts []string
	if e.ID != "" {
		parts = append(parts, fmt.Sprintf("Error id - '%s'.", e.ID))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("Error code - '%s'.", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Error message - '%s'.", e.Message))
	}
	return strings.Join(parts, " ")
}

// TransactionResponse holds the fields shared by every operation response.
type TransactionResponse struct {
	Success bool              `json:"success"`
	Error   *TransactionError `json:"error,omitempty"`
}

type CustomerInfo struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required"`
	MobileNumber string `json:"mobileNumber" validate:"required"`
}

type OrderDetails struct {
	OrderID     string `json:"orderInvoiceID,omitempty"`
	Description string `json:"orderDescription" validate:"required"`
	Amount      Amount `json:"orderInvoiceAmt"`
	Date        Date   `json:"orderDate"`
}

// InitiateProcessRequest starts a checkout at the provider.
type InitiateProcessRequest struct {
	AccountID    string        `json:"accountId" validate:"required"`
	ReturnURL    string        `json:"returnUrl" validate:"required,url"`
	CustomerInfo *CustomerInfo `json:"customerInfo" validate:"required"`
	OrderDetails *OrderDetails `json:"orderDetails" validate:"required"`
}

type InitiateProcessResponse struct {
	TransactionResponse
	FlexiTrackingID   string `json:"flexiTrackingId,omitempty"`
	PartnerTrackingID string `json:"partnerTrackingId,omitempty"`
	RedirectURL       string `json:"redirectURL,omitempty"`
}

// TrackingID prefers the partner tracking id over the flexi one.
func (r *InitiateProcessResponse) TrackingID() string {
	return pickTrackingID(r.PartnerTrackingID, r.FlexiTrackingID)
}

type GetPaymentDetailsRequest struct {
	AccountID  string `json:"accountId"`
	TrackingID string `json:"trackingId"`
}

type GetPaymentDetailsResponse struct {
	TransactionResponse
	Status             *PaymentStatus `json:"status,omitempty"`
	Amount             *Amount        `json:"paymentAmount,omitempty"`
	PaymentDate        *Date          `json:"paymentDate,omitempty"`
	CancellationReason string         `json:"cancellationReason,omitempty"`
	CancellationDate   *Date          `json:"cancellationDate,omitempty"`
}

// RefundPaymentRequest refunds a captured payment. AmountToRefund is omitted
// when the store is configured to refund without an amount.
type RefundPaymentRequest struct {
	TrackingID     string  `json:"trackingId"`
	AccountID      string  `json:"accountId"`
	AmountToRefund *Amount `json:"amountToRefund,omitempty"`
}

type RefundPaymentResponse struct {
	TransactionResponse
	Message string `json:"refundMessage,omitempty"`
}

// ConfirmPaymentRequest is the payload posted back by the provider
// when the customer finishes the checkout.
type ConfirmPaymentRequest struct {
	Success           bool
	FlexiTrackingID   string
	PartnerTrackingID string
	Error             *TransactionError
	PaymentAmount     *decimal.Decimal
	PaymentDate       *time.Time
}

// TrackingID prefers the partner tracking id over the flexi one.
func (r ConfirmPaymentRequest) TrackingID() string {
	return pickTrackingID(r.PartnerTrackingID, r.FlexiTrackingID)
}

// ParseConfirmPaymentForm reads a form encoded confirmation payload.
// Malformed optional values are reported as errors; absent ones stay nil.
func ParseConfirmPaymentForm(form url.Values) (ConfirmPaymentRequest, error) {
	req := ConfirmPaymentRequest{
		FlexiTrackingID:   strings.TrimSpace(form.Get("flexiTrackingId")),
		PartnerTrackingID: strings.TrimSpace(form.Get("partnerTrackingId")),
	}
	if raw := strings.TrimSpace(form.Get("success")); raw != "" {
		ok, err := strconv.ParseBool(raw)
		if err != nil {
			return req, fmt.Errorf("invalid success flag %q", raw)
		}
		req.Success = ok
	}
	if id, code, msg := form.Get("errorId"), form.Get("errorCode"), form.Get("errorMessage"); id != "" || code != "" || msg != "" {
		req.Error = &TransactionError{ID: id, Code: code, Message: msg}
	}
	if raw := strings.TrimSpace(form.Get("paymentAmount")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return req, fmt.Errorf("invalid payment amount %q", raw)
		}
		req.PaymentAmount = &amount
	}
	if raw := strings.TrimSpace(form.Get("paymentDate")); raw != "" {
		date, err := parseDate(raw)
		if err != nil {
			return req, err
		}
		req.PaymentDate = &date
	}
	return req, nil
}

// CancelRequest is sent when the customer abandons the checkout.
type CancelRequest struct {
	AccID   string
	OrderID string
}

func pickTrackingID(partner, flexi string) string {
	if partner = strings.TrimSpace(partner); partner != "" {
		return partner
	}
	return strings.TrimSpace(flexi)
}
