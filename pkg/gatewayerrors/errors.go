// Package gatewayerrors implements the gateway's error taxonomy: typed,
// wrapped errors that carry an HTTP status and surfaced error code, in the
// style of the teacher's pkg/provider/errors package.
package gatewayerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one entry in the gateway's error taxonomy (spec §7).
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindInvalidRequest      Kind = "invalid_request"
	KindUnknownField        Kind = "unknown_field"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindUpstreamError       Kind = "upstream_error"
	KindUpstreamFetchFailed Kind = "upstream_fetch_failed"
	KindRequestTimeout      Kind = "request_timeout"
	KindTransformInitFailed Kind = "transform_init_failed"
	KindTransformApply      Kind = "transform_apply_failed"
	KindInternal            Kind = "internal_error"
)

// httpStatus maps each Kind to its HTTP status, per spec §7.
var httpStatus = map[Kind]int{
	KindUnauthorized:        http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindInvalidRequest:      http.StatusBadRequest,
	KindUnknownField:        http.StatusBadRequest,
	KindInsufficientBalance: http.StatusPaymentRequired,
	KindUpstreamError:       http.StatusBadGateway,
	KindUpstreamFetchFailed: http.StatusBadGateway,
	KindRequestTimeout:      http.StatusGatewayTimeout,
	KindTransformInitFailed: http.StatusInternalServerError,
	KindTransformApply:      http.StatusInternalServerError,
	KindInternal:            http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code for k, defaulting to 500 for an
// unrecognized kind.
func (k Kind) HTTPStatus() int {
	if s, ok := httpStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// GatewayError is the error type surfaced to the downstream HTTP layer. It
// satisfies error and errors.Unwrap.
type GatewayError struct {
	Kind    Kind
	Message string
	Cause   error
}

// New builds a GatewayError with no cause.
func New(kind Kind, message string) *GatewayError {
	return &GatewayError{Kind: kind, Message: message}
}

// Wrap builds a GatewayError around an existing cause.
func Wrap(kind Kind, message string, cause error) *GatewayError {
	return &GatewayError{Kind: kind, Message: message, Cause: cause}
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// Code returns the surfaced error code, which is simply the Kind string for
// every taxonomy entry in this gateway.
func (e *GatewayError) Code() string { return string(e.Kind) }

// As extracts a *GatewayError from err, if any, the same helper shape as
// the teacher's Is*Error functions.
func As(err error) (*GatewayError, bool) {
	var ge *GatewayError
	ok := errors.As(err, &ge)
	return ge, ok
}

// EnvelopeBody is the unary error JSON body shape from spec §6.
type EnvelopeBody struct {
	Error EnvelopeError `json:"error"`
}

// EnvelopeError is the nested error object in EnvelopeBody.
type EnvelopeError struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Code    string  `json:"code"`
	Param   *string `json:"param"`
}

// Envelope builds the JSON error envelope for err, classifying unknown
// errors as internal_error.
func Envelope(err error) (status int, body EnvelopeBody) {
	ge, ok := As(err)
	if !ok {
		return http.StatusInternalServerError, EnvelopeBody{Error: EnvelopeError{
			Message: err.Error(),
			Type:    string(KindInternal),
			Code:    string(KindInternal),
		}}
	}
	return ge.Kind.HTTPStatus(), EnvelopeBody{Error: EnvelopeError{
		Message: ge.Message,
		Type:    string(ge.Kind),
		Code:    ge.Code(),
	}}
}
