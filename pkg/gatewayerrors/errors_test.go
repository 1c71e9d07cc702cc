package gatewayerrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexrelay/gatewaycore/pkg/gatewayerrors"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, 401, gatewayerrors.KindUnauthorized.HTTPStatus())
	assert.Equal(t, 402, gatewayerrors.KindInsufficientBalance.HTTPStatus())
	assert.Equal(t, 502, gatewayerrors.KindUpstreamError.HTTPStatus())
	assert.Equal(t, 504, gatewayerrors.KindRequestTimeout.HTTPStatus())
}

func TestWrapAndAs(t *testing.T) {
	cause := errors.New("boom")
	ge := gatewayerrors.Wrap(gatewayerrors.KindUpstreamError, "call failed", cause)

	var err error = ge
	got, ok := gatewayerrors.As(err)
	assert.True(t, ok)
	assert.Equal(t, gatewayerrors.KindUpstreamError, got.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestEnvelopeUnknownErrorIsInternal(t *testing.T) {
	status, body := gatewayerrors.Envelope(errors.New("whatever"))
	assert.Equal(t, 500, status)
	assert.Equal(t, "internal_error", body.Error.Code)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, gatewayerrors.Retryable(0))
	assert.True(t, gatewayerrors.Retryable(429))
	assert.True(t, gatewayerrors.Retryable(503))
	assert.False(t, gatewayerrors.Retryable(400))
	assert.False(t, gatewayerrors.Retryable(401))
	assert.False(t, gatewayerrors.Retryable(403))
	assert.False(t, gatewayerrors.Retryable(422))
	assert.False(t, gatewayerrors.Retryable(404))
}
