// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package google_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kiln-dev/kiln/internal/provider"
	"github.com/kiln-dev/kiln/internal/provider/google"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Adapter = (*google.Adapter)(nil)

func validConfig() google.Config {
	return google.Config{APIKey: "test-key", Model: "gemini-2.5-flash"}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	a, err := google.New(ctx, "google-text", types.ModalityText, validConfig())
	require.NoError(t, err)
	assert.Equal(t, "google-text", a.ID())
	require.NoError(t, a.Close())

	_, err = google.New(ctx, "google-image", types.ModalityImage,
		google.Config{APIKey: "test-key", Model: "imagen-4.0-generate-001"})
	require.NoError(t, err)
}

func TestNew_Invalid(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		modality types.Modality
		cfg      google.Config
	}{
		{"missing api key", types.ModalityText, google.Config{Model: "gemini-2.5-flash"}},
		{"missing model", types.ModalityText, google.Config{APIKey: "test-key"}},
		{"unknown modality", "video", validConfig()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := google.New(ctx, "google-x", tt.modality, tt.cfg)
			require.Error(t, err)
			assert.True(t, kilnerrors.IsInvalidInput(err))
		})
	}
}

func TestWrapErr_Classification(t *testing.T) {
	a, err := google.New(context.Background(), "google-text", types.ModalityText, validConfig())
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
		kind provider.FailureKind
	}{
		{"rate limited", genai.APIError{Code: 429}, provider.FailureRateLimited},
		{"server error", genai.APIError{Code: 503}, provider.FailureError},
		{"plain error", errors.New("connection refused"), provider.FailureError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := a.WrapErr(tt.err)
			assert.Equal(t, tt.kind, provider.ClassifyInvokeError(wrapped))
		})
	}
}
