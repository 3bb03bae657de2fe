package humm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mstgnz/hummpay/infra/config"
	"github.com/mstgnz/hummpay/infra/logger"
	"github.com/mstgnz/hummpay/infra/store"
	"github.com/mstgnz/hummpay/provider"
	"github.com/shopspring/decimal"
)

type Customers interface {
	GetCustomerByID(ctx context.Context, id int64) (*store.Customer, error)
	GetCustomerByGUID(ctx context.Context, guid uuid.UUID) (*store.Customer, error)
}

type Addresses interface {
	GetAddressByID(ctx context.Context, id int64) (*store.Address, error)
}

type Orders interface {
	GetOrderByID(ctx context.Context, id int64) (*store.Order, error)
	FindOrderByCaptureTransactionID(ctx context.Context, id string) (*store.Order, error)
	MarkOrderAsPaid(ctx context.Context, orderID int64, captureTransactionID string) error
	CancelOrder(ctx context.Context, orderID int64) error
	ApplyRefund(ctx context.Context, orderID int64, amount decimal.Decimal, status store.PaymentStatus) error
}

type Attributes interface {
	SaveAttribute(ctx context.Context, keyGroup string, entityID int64, key, value string, storeID int64) error
	GetAttribute(ctx context.Context, keyGroup string, entityID int64, key string, storeID int64) (string, error)
	FindEntityIDsByAttribute(ctx context.Context, keyGroup, key, value string) ([]int64, error)
}

// Platform is everything the service needs from the e-commerce platform.
type Platform interface {
	Customers
	Addresses
	Orders
	Attributes
}

// ServiceOptions holds the platform settings that shape provider requests.
type ServiceOptions struct {
	// CallbackBaseURL is the public origin the provider redirects customers to.
	CallbackBaseURL string
	// Location is the store time zone used for order dates. Nil means UTC.
	Location         *time.Location
	UsernamesEnabled bool
	PhoneEnabled     bool
	Lookups          []OrderLookupStrategy
}

type PrerequisitesResult struct {
	Success     bool
	AccessToken string
	InstanceURL string
	Errors      []string
}

type CreatePaymentResult struct {
	Success     bool
	RedirectURL string
	TrackingID  string
	Errors      []string
}

type TransactionResult struct {
	Success     bool
	Transaction *GetPaymentDetailsResponse
	Errors      []string
}

type RefundResult struct {
	Success bool
	Errors  []string
}

// Service drives the payment flows of one store.
type Service struct {
	client   *Client
	platform Platform
	opts     ServiceOptions
	validate *validator.Validate
	log      *logger.ContextLogger
}

// NewService binds client, and with it the store settings, to platform.
func NewService(client *Client, platform Platform, opts ServiceOptions) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if len(opts.Lookups) == 0 {
		opts.Lookups = DefaultOrderLookups(platform)
	}
	return &Service{
		client:   client,
		platform: platform,
		opts:     opts,
		validate: validator.New(),
		log:      logger.WithStore(client.Settings().StoreID, SystemName),
	}
}

// Settings returns the store settings the service works with.
func (s *Service) Settings() config.Settings {
	return s.client.Settings()
}

// IsConfigured reports whether the store holds a usable session.
func (s *Service) IsConfigured() bool {
	return len(validateConfiguration(s.client.Settings())) == 0
}

// GetPrerequisites requests a new session with the given settings. The
// service's own client is never modified. No call is made when credentials are missing.
func (s *Service) GetPrerequisites(ctx context.Context, settings config.Settings) PrerequisitesResult {
	if errs := validateCredentials(settings); len(errs) > 0 {
		return PrerequisitesResult{Errors: errs}
	}

	resp, err := s.client.WithSettings(settings).RefreshToken(ctx)
	if err != nil {
		return PrerequisitesResult{Errors: []string{err.Error()}}
	}
	return PrerequisitesResult{
		Success:     true,
		AccessToken: resp.AccessToken,
		InstanceURL: resp.InstanceURL,
	}
}

// CreatePayment initiates a provider checkout for order and remembers the tracking id.
// All validation problems are collected before any call is made.
func (s *Service) CreatePayment(ctx context.Context, order *store.Order) (CreatePaymentResult, error) {
	if order == nil {
		return CreatePaymentResult{}, fmt.Errorf("%w: order is required", provider.ErrInvalidArgument)
	}

	settings := s.client.Settings()
	errs := validateConfiguration(settings)

	customer, err := s.platform.GetCustomerByID(ctx, order.CustomerID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		customer = nil
		errs = append(errs, fmt.Sprintf(msgCustomerNotFound, order.CustomerID))
	case err != nil:
		return CreatePaymentResult{}, fmt.Errorf("load customer %d: %w", order.CustomerID, err)
	}

	address, err := s.shippingAddress(ctx, order)
	if err != nil {
		return CreatePaymentResult{}, err
	}

	var name, phone string
	if customer != nil {
		if name, err = s.customerName(ctx, customer, address); err != nil {
			return CreatePaymentResult{}, err
		}
		if phone, err = s.customerPhone(ctx, customer, address); err != nil {
			return CreatePaymentResult{}, err
		}
	} else if address != nil {
		phone = strings.TrimSpace(address.PhoneNumber)
	}
	if phone == "" {
		errs = append(errs, msgPhoneRequired)
	}
	if !order.OrderTotal.IsPositive() {
		errs = append(errs, msgAmountPositive)
	}
	if len(errs) > 0 {
		return CreatePaymentResult{Errors: errs}, nil
	}

	email := customer.Email
	if address != nil && strings.TrimSpace(address.Email) != "" {
		email = address.Email
	}

	req := &InitiateProcessRequest{
		AccountID: settings.ActiveCredentials().AccountID,
		ReturnURL: s.returnURL(customer.CustomerGUID),
		CustomerInfo: &CustomerInfo{
			Name:         name,
			Email:        email,
			MobileNumber: phone,
		},
		OrderDetails: &OrderDetails{
			OrderID:     order.OrderGUID.String(),
			Description: "#" + order.CustomOrderNumber,
			Amount:      NewAmount(order.OrderTotal),
			Date:        NewDate(order.CreatedOnUTC.In(s.opts.Location)),
		},
	}
	if errs := s.validateRequest(req); len(errs) > 0 {
		return CreatePaymentResult{Errors: errs}, nil
	}

	resp, err := s.client.InitiatePayment(ctx, req)
	if err != nil {
		return CreatePaymentResult{Errors: []string{err.Error()}}, nil
	}
	if !resp.Success {
		return CreatePaymentResult{Errors: []string{declineMessage("", resp.Error)}}, nil
	}

	trackingID := resp.TrackingID()
	if trackingID == "" {
		return CreatePaymentResult{Errors: []string{msgTrackingIDEmpty}}, nil
	}
	if err := s.platform.SaveAttribute(ctx, store.KeyGroupOrder, order.ID, TrackingIDAttribute, trackingID, 0); err != nil {
		return CreatePaymentResult{}, fmt.Errorf("save tracking id of order %d: %w", order.ID, err)
	}

	s.log.AddField("order_id", order.ID).AddField("tracking_id", trackingID).Debug("Payment initiated")
	return CreatePaymentResult{
		Success:     true,
		RedirectURL: resp.RedirectURL,
		TrackingID:  trackingID,
	}, nil
}

// GetTransactionByID fetches the provider view of a checkout. Status
// interpretation is left to the caller.
func (s *Service) GetTransactionByID(ctx context.Context, trackingID string) (TransactionResult, error) {
	if strings.TrimSpace(trackingID) == "" {
		return TransactionResult{}, fmt.Errorf("%w: tracking id is required", provider.ErrInvalidArgument)
	}

	settings := s.client.Settings()
	if errs := validateConfiguration(settings); len(errs) > 0 {
		return TransactionResult{Errors: errs}, nil
	}

	resp, err := s.client.GetPaymentDetails(ctx, &GetPaymentDetailsRequest{
		AccountID:  settings.ActiveCredentials().AccountID,
		TrackingID: trackingID,
	})
	if err != nil {
		return TransactionResult{Errors: []string{err.Error()}}, nil
	}
	return TransactionResult{Success: true, Transaction: resp}, nil
}

// RefundOrder refunds amount of a paid order.
func (s *Service) RefundOrder(ctx context.Context, order *store.Order, amount decimal.Decimal) (RefundResult, error) {
	if order == nil {
		return RefundResult{}, fmt.Errorf("%w: order is required", provider.ErrInvalidArgument)
	}

	settings := s.client.Settings()
	if errs := validateConfiguration(settings); len(errs) > 0 {
		return RefundResult{Errors: errs}, nil
	}

	trackingID, err := s.trackingIDOf(ctx, order)
	if err != nil {
		return RefundResult{}, err
	}
	if trackingID == "" {
		return RefundResult{Errors: []string{msgTrackingIDEmpty}}, nil
	}

	req := &RefundPaymentRequest{
		TrackingID: trackingID,
		AccountID:  settings.ActiveCredentials().AccountID,
	}
	if settings.RefundIncludesAmount {
		a := NewAmount(amount)
		req.AmountToRefund = &a
	}

	resp, err := s.client.RefundPayment(ctx, req)
	if err != nil {
		return RefundResult{Errors: []string{err.Error()}}, nil
	}
	if !resp.Success {
		return RefundResult{Errors: []string{declineMessage(resp.Message, resp.Error)}}, nil
	}
	return RefundResult{Success: true}, nil
}

// GetOrderByExternalID resolves an order from a tracking id. It returns nil
// when nothing matches or the match is deleted.
func (s *Service) GetOrderByExternalID(ctx context.Context, externalID string) (*store.Order, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("%w: external id is required", provider.ErrInvalidArgument)
	}
	return lookupOrder(ctx, s.opts.Lookups, externalID)
}

func (s *Service) shippingAddress(ctx context.Context, order *store.Order) (*store.Address, error) {
	if order.PickupInStore || order.ShippingAddressID == 0 {
		return nil, nil
	}
	address, err := s.platform.GetAddressByID(ctx, order.ShippingAddressID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load shipping address %d: %w", order.ShippingAddressID, err)
	}
	return address, nil
}

// customerName falls back from the shipping first name to the profile
// first name, then the username when enabled, then the e-mail.
func (s *Service) customerName(ctx context.Context, customer *store.Customer, address *store.Address) (string, error) {
	if address != nil && strings.TrimSpace(address.FirstName) != "" {
		return address.FirstName, nil
	}
	firstName, err := s.platform.GetAttribute(ctx, store.KeyGroupCustomer, customer.ID, store.AttributeFirstName, 0)
	if err != nil {
		return "", fmt.Errorf("load first name of customer %d: %w", customer.ID, err)
	}
	if strings.TrimSpace(firstName) != "" {
		return firstName, nil
	}
	if s.opts.UsernamesEnabled {
		return customer.Username, nil
	}
	return customer.Email, nil
}

func (s *Service) customerPhone(ctx context.Context, customer *store.Customer, address *store.Address) (string, error) {
	if address != nil && strings.TrimSpace(address.PhoneNumber) != "" {
		return strings.TrimSpace(address.PhoneNumber), nil
	}
	if !s.opts.PhoneEnabled {
		return "", nil
	}
	phone, err := s.platform.GetAttribute(ctx, store.KeyGroupCustomer, customer.ID, store.AttributePhone, 0)
	if err != nil {
		return "", fmt.Errorf("load phone of customer %d: %w", customer.ID, err)
	}
	return strings.TrimSpace(phone), nil
}

// trackingIDOf prefers the capture transaction id and falls back to the pending attribute.
func (s *Service) trackingIDOf(ctx context.Context, order *store.Order) (string, error) {
	if id := strings.TrimSpace(order.CaptureTransactionID); id != "" {
		return id, nil
	}
	id, err := s.platform.GetAttribute(ctx, store.KeyGroupOrder, order.ID, TrackingIDAttribute, 0)
	if err != nil {
		return "", fmt.Errorf("load tracking id of order %d: %w", order.ID, err)
	}
	return strings.TrimSpace(id), nil
}

func (s *Service) returnURL(token uuid.UUID) string {
	return strings.TrimRight(s.opts.CallbackBaseURL, "/") + CheckoutCompletedPath + token.String()
}

func (s *Service) validateRequest(req *InitiateProcessRequest) []string {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Sprintf("The field '%s' failed on the '%s' rule.", fe.Namespace(), fe.Tag()))
	}
	return errs
}

// validateCredentials checks the credentials of the active environment.
func validateCredentials(settings config.Settings) []string {
	creds := settings.ActiveCredentials()
	return provider.ValidateConfigFields([]provider.ConfigField{
		{Code: CodeAccountIDRequired, Value: creds.AccountID},
		{Code: CodeClientIDRequired, Value: creds.ClientID},
		{Code: CodeClientSecretRequired, Value: creds.ClientSecret},
		{Code: CodeRefreshTokenRequired, Value: creds.RefreshToken},
	})
}

// validateConfiguration checks the session. Failures end with the guidance message.
func validateConfiguration(settings config.Settings) []string {
	errs := provider.ValidateConfigFields([]provider.ConfigField{
		{Code: CodeAccessTokenRequired, Value: settings.AccessToken, Type: provider.FieldString},
		{Code: CodeInstanceURLRequired, Value: settings.InstanceURL, Type: provider.FieldURL},
	})
	if len(errs) > 0 {
		errs = append(errs, guidanceMessage)
	}
	return errs
}

func declineMessage(prefix string, txErr *TransactionError) string {
	msg := strings.TrimSpace(strings.TrimSpace(prefix) + " " + txErr.String())
	if msg == "" {
		return "The provider declined the request without details."
	}
	return msg
}
