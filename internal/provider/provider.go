// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package provider

import (
	"context"
	"errors"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// Adapter is the uniform interface over a concrete third-party generation
// endpoint. One adapter instance exists per configured provider descriptor;
// the adapter owns request/response translation for its modality and must
// honor context cancellation on the Invoke call.
//
// Invoke is at-most-once from the caller's perspective: transient retries
// against the same upstream, if any, belong inside the adapter.
type Adapter interface {
	ID() string
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
	Close() error
}

// Invocation is the generation payload handed to an adapter. Routing treats
// it as opaque; only the adapter interprets it.
type Invocation struct {
	Prompt string
	// MaxUnits bounds the billable output: maximum completion tokens for
	// text providers, image count for image providers. Zero means the
	// adapter's default.
	MaxUnits int
	// Size is an image dimension hint ("1024x1024"); text adapters ignore it.
	Size string
}

// Result is a successful generation outcome.
type Result struct {
	Text string
	// Images holds base64-encoded image payloads for image providers.
	Images []string
	// BilledUnits is the metered quantity actually charged upstream:
	// total tokens for text, image count for images.
	BilledUnits int64
}

// FailureKind classifies why a provider attempt failed.
type FailureKind string

const (
	// FailureUnavailable marks a provider that could not be attempted at all.
	FailureUnavailable FailureKind = "unavailable"
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureError       FailureKind = "error"
)

// WrapStatusError converts an upstream HTTP status into a coded error so
// ClassifyInvokeError can map it to the right failure kind. Adapters call
// this after extracting the status from their SDK's error type.
func WrapStatusError(id string, status int, err error) error {
	var code kilnerr.Code
	switch {
	case status == 429:
		code = kilnerr.CodeProviderRateLimited
	case status == 408 || status == 504:
		code = kilnerr.CodeProviderTimeout
	case status >= 500:
		code = kilnerr.CodeProviderUpstreamFailure
	case status >= 400:
		code = kilnerr.CodeProviderRequestInvalid
	default:
		code = kilnerr.CodeProviderUpstreamFailure
	}
	return kilnerr.Wrapf(err, code, "provider %s: upstream returned status %d", id, status)
}

// ClassifyInvokeError maps an adapter error to a FailureKind. Adapters wrap
// upstream failures in coded errors; anything uncoded is a plain provider
// error. Deadline expiry on the attempt context counts as a timeout even
// when the adapter surfaces it untyped.
func ClassifyInvokeError(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case kilnerr.IsRateLimited(err):
		return FailureRateLimited
	case kilnerr.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailureError
	}
}
