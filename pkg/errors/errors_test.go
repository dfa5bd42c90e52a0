// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := kilnerr.New(
		kilnerr.CodeProviderTimeout,
		"attempt deadline exceeded",
		kilnerr.FieldProvider("openai-text"),
		kilnerr.FieldTier("pro"),
	)

	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeProviderTimeout, kilnerr.CodeOf(err))
	assert.True(t, kilnerr.HasCode(err, kilnerr.CodeProviderTimeout))

	fields := kilnerr.FieldsOf(err)
	assert.Equal(t, "openai-text", fields["provider"])
	assert.Equal(t, "pro", fields["tier"])
}

func TestNewWithNoFields(t *testing.T) {
	err := kilnerr.New(kilnerr.CodeStoreDatabaseFailure, "connection lost")
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeStoreDatabaseFailure, kilnerr.CodeOf(err))
	assert.Contains(t, err.Error(), "connection lost")
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := kilnerr.Errorf(kilnerr.CodeProviderNotFound, "looking up provider %s (priority %d)", "stability", 3)
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeProviderNotFound, kilnerr.CodeOf(err))
	assert.Contains(t, err.Error(), "looking up provider stability (priority 3)")
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := kilnerr.Errorf(kilnerr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, kilnerr.CodeStoreDatabaseFailure, kilnerr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("429 too many requests")
	err := kilnerr.Wrap(
		root,
		kilnerr.CodeProviderRateLimited,
		"invoking provider",
		kilnerr.FieldProvider("anthropic-text"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, kilnerr.CodeProviderRateLimited, kilnerr.CodeOf(err))
	assert.True(t, kilnerr.IsRateLimited(err))
	assert.Equal(t, "anthropic-text", kilnerr.FieldsOf(err)["provider"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, kilnerr.Wrap(nil, kilnerr.CodeStoreDatabaseFailure, "ignored"))
	assert.NoError(t, kilnerr.Wrapf(nil, kilnerr.CodeStoreDatabaseFailure, "ignored %d", 1))
	assert.NoError(t, kilnerr.With(nil, kilnerr.Field("k", "v")))
}

func TestWithAddsFieldsAndKeepsCode(t *testing.T) {
	err := kilnerr.New(kilnerr.CodeOrchestratorAllExhausted, "every candidate failed")
	err = kilnerr.With(err, kilnerr.FieldRequestID("req-7"))

	assert.Equal(t, kilnerr.CodeOrchestratorAllExhausted, kilnerr.CodeOf(err))
	assert.Equal(t, "req-7", kilnerr.FieldsOf(err)["request_id"])
}

// ---------------------------------------------------------------------------
// Classification predicates
// ---------------------------------------------------------------------------

func TestClassificationPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"not found", kilnerr.New(kilnerr.CodeProviderNotFound, "x"), kilnerr.IsNotFound},
		{"invalid value", kilnerr.New(kilnerr.CodeConfigValidateInvalidValue, "x"), kilnerr.IsInvalidInput},
		{"timeout", kilnerr.New(kilnerr.CodeProviderTimeout, "x"), kilnerr.IsTimeout},
		{"rate limited", kilnerr.New(kilnerr.CodeProviderRateLimited, "x"), kilnerr.IsRateLimited},
		{"upstream", kilnerr.New(kilnerr.CodeProviderUpstreamFailure, "x"), kilnerr.IsUpstreamFailure},
		{"exhausted", kilnerr.New(kilnerr.CodeOrchestratorAllExhausted, "x"), kilnerr.IsExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
		})
	}
}

func TestPredicatesRejectPlainErrors(t *testing.T) {
	plain := stderrors.New("plain")
	assert.False(t, kilnerr.IsNotFound(plain))
	assert.False(t, kilnerr.IsTimeout(plain))
	assert.Equal(t, kilnerr.Code(""), kilnerr.CodeOf(plain))
	assert.Nil(t, kilnerr.FieldsOf(plain))
}

// ---------------------------------------------------------------------------
// HTTPStatus
// ---------------------------------------------------------------------------

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", kilnerr.New(kilnerr.CodeServerEntityNotFound, "x"), http.StatusNotFound},
		{"invalid input", kilnerr.New(kilnerr.CodeServerRequestInvalid, "x"), http.StatusBadRequest},
		{"rate limited", kilnerr.New(kilnerr.CodeProviderRateLimited, "x"), http.StatusTooManyRequests},
		{"timeout", kilnerr.New(kilnerr.CodeProviderTimeout, "x"), http.StatusGatewayTimeout},
		{"upstream", kilnerr.New(kilnerr.CodeProviderUpstreamFailure, "x"), http.StatusBadGateway},
		{"exhausted", kilnerr.New(kilnerr.CodeOrchestratorAllExhausted, "x"), http.StatusBadGateway},
		{"fallback", kilnerr.New(kilnerr.CodeServerInternalFailure, "x"), http.StatusInternalServerError},
		{"plain error", stderrors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kilnerr.HTTPStatus(tt.err))
		})
	}
}

// ---------------------------------------------------------------------------
// Join
// ---------------------------------------------------------------------------

func TestJoinCombinesErrors(t *testing.T) {
	e1 := stderrors.New("first")
	e2 := stderrors.New("second")

	joined := kilnerr.Join(e1, e2)
	require.Error(t, joined)
	assert.ErrorIs(t, joined, e1)
	assert.ErrorIs(t, joined, e2)
}
