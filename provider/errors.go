package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidArgument marks a programmer error such as a nil request.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConfiguration marks missing or malformed store settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrProvider marks a response with HTTP status >= 400.
	ErrProvider = errors.New("provider error")
	// ErrTransport marks a connection, DNS, TLS or timeout failure.
	ErrTransport = errors.New("transport error")
	// ErrProtocol marks a successful status with an undecodable body.
	ErrProtocol = errors.New("protocol error")
)

// ErrorEnvelope is the error body returned by the provider on failures.
type ErrorEnvelope struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Empty reports whether the envelope carries no information.
func (e ErrorEnvelope) Empty() bool {
	return strings.TrimSpace(e.Code) == "" && strings.TrimSpace(e.Description) == ""
}

// APIError is returned by the transport for every failed call.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Envelope   *ErrorEnvelope
	Body       string
	kind       error
	cause      error
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap exposes the error kind and the underlying cause to errors.Is/As.
func (e *APIError) Unwrap() []error {
	errs := []error{e.kind}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func callPrefix(operation string, status int) string {
	return fmt.Sprintf("Error when calling '%s'. HTTP status code - %d. ", operation, status)
}

// newTransportError drops the query string of a failed URL: token requests
// carry the client secret and refresh token there.
func newTransportError(operation string, cause error) *APIError {
	detail := cause.Error()
	var urlErr *url.Error
	if errors.As(cause, &urlErr) {
		detail = fmt.Sprintf("%s %q: %v", urlErr.Op, stripQuery(urlErr.URL), urlErr.Err)
		cause = urlErr.Err
	}
	return &APIError{
		Operation:  operation,
		StatusCode: 500,
		Message:    callPrefix(operation, 500) + detail,
		kind:       ErrTransport,
		cause:      cause,
	}
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}

func newStatusError(operation string, status int, body []byte, envelope *ErrorEnvelope) *APIError {
	msg := callPrefix(operation, status)
	if envelope != nil {
		msg += fmt.Sprintf("Error code - '%s'. Error description - '%s'.", envelope.Code, envelope.Description)
	} else {
		msg += string(body)
	}
	return &APIError{
		Operation:  operation,
		StatusCode: status,
		Message:    msg,
		Envelope:   envelope,
		Body:       string(body),
		kind:       ErrProvider,
	}
}

func newProtocolError(operation string, status int, body []byte, cause error) *APIError {
	return &APIError{
		Operation:  operation,
		StatusCode: status,
		Message:    callPrefix(operation, status) + "Unable to decode response: " + cause.Error(),
		Body:       string(body),
		kind:       ErrProtocol,
		cause:      cause,
	}
}
