package humm

import "time"

const (
	// SystemName identifies the payment method in logs and notices.
	SystemName = "Payments.Humm"

	// TrackingIDAttribute is the order attribute holding the pending tracking id.
	TrackingIDAttribute = "Humm.Order.TrackingId"

	// RefreshTaskName is the human readable name of the token refresh job.
	RefreshTaskName = "Refresh pre-requisites (Humm plugin)"

	// DefaultRefreshInterval is how often the refresh job runs.
	DefaultRefreshInterval = 3600 * time.Second

	// CheckoutCompletedPath is the callback route prefix; the customer GUID follows it.
	CheckoutCompletedPath = "/humm/checkout/completed/"
)

// API endpoints
const (
	endpointAuthorizeSandbox    = "https://test.salesforce.com/services/oauth2/token"
	endpointAuthorizeProduction = "https://login.salesforce.com/services/oauth2/token"
	endpointInitiatePayment     = "/services/apexrest/initiateProcess"
	endpointPaymentDetails      = "/services/apexrest/getPaymentDetails"
	endpointRefundPayment       = "/services/apexrest/RefundPayment"
)

// Operation names reported by the transport in errors, logs and metrics.
const (
	OpRefreshToken      = "RefreshToken"
	OpInitiatePayment   = "InitiatePayment"
	OpGetPaymentDetails = "GetPaymentDetails"
	OpRefundPayment     = "RefundPayment"
)

// Requirement codes. They double as resource keys for localized messages.
const (
	CodeAccountIDRequired    = "Plugins.Payments.Humm.Fields.AccountId.Required"
	CodeClientIDRequired     = "Plugins.Payments.Humm.Fields.ClientId.Required"
	CodeClientSecretRequired = "Plugins.Payments.Humm.Fields.ClientSecret.Required"
	CodeRefreshTokenRequired = "Plugins.Payments.Humm.Fields.RefreshToken.Required"
	CodeAccessTokenRequired  = "Plugins.Payments.Humm.Fields.AccessToken.Required"
	CodeInstanceURLRequired  = "Plugins.Payments.Humm.Fields.InstanceUrl.Required"

	// NoticeInvalidPayment is the only failure customers ever see.
	NoticeInvalidPayment = "Plugins.Payments.Humm.InvalidPayment"
)

// Messages holds the English text of every resource key.
var Messages = map[string]string{
	CodeAccountIDRequired:    "The account ID is required.",
	CodeClientIDRequired:     "The client ID is required.",
	CodeClientSecretRequired: "The client secret is required.",
	CodeRefreshTokenRequired: "The refresh token is required.",
	CodeAccessTokenRequired:  "The access token is required.",
	CodeInstanceURLRequired:  "The instance URL is required.",
	NoticeInvalidPayment:     "Error when processing the payment transaction. Please try again or contact with store owner.",
}

// Message returns the English text for a resource key, or the key itself.
func Message(key string) string {
	if msg, ok := Messages[key]; ok {
		return msg
	}
	return key
}

var guidanceMessage = "Configure the plugin settings or run the '" + RefreshTaskName +
	"' schedule task to get new access token and/or instance URL"

const (
	msgCustomerNotFound = "The customer with id '%d' not found"
	msgPhoneRequired    = "The phone number is required."
	msgAmountPositive   = "The order total must be greater than zero."
	msgTrackingIDEmpty  = "Tracking ID is empty"
)
