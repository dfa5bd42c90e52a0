// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package anthropic adapts the Anthropic Messages API to the
// provider.Adapter interface. Anthropic serves text only; image descriptors
// are rejected at construction.
package anthropic

import (
	"context"
	"errors"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kiln-dev/kiln/internal/provider"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// defaultMaxTokens applies when the invocation does not bound output.
// The Messages API requires an explicit max_tokens.
const defaultMaxTokens = 4096

// Config holds Anthropic adapter configuration.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, useful for testing against a
	// mock server.
	BaseURL string
}

// Compile-time interface check.
var _ provider.Adapter = (*Adapter)(nil)

// Adapter implements provider.Adapter for one Anthropic descriptor.
type Adapter struct {
	id     string
	model  string
	client anthropicsdk.Client
}

// New creates an Anthropic adapter for the given descriptor identity.
func New(id string, modality types.Modality, cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, kilnerrors.New(kilnerrors.CodeProviderRequestInvalid,
			"anthropic: missing api key", kilnerrors.FieldProvider(id))
	}
	if cfg.Model == "" {
		return nil, kilnerrors.New(kilnerrors.CodeProviderRequestInvalid,
			"anthropic: missing model", kilnerrors.FieldProvider(id))
	}
	if modality != types.ModalityText {
		return nil, kilnerrors.Errorf(kilnerrors.CodeProviderRequestInvalid,
			"anthropic: unsupported modality %q, only text is served", modality)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		id:     id,
		model:  cfg.Model,
		client: anthropicsdk.NewClient(opts...),
	}, nil
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) Invoke(ctx context.Context, inv provider.Invocation) (*provider.Result, error) {
	maxTokens := int64(defaultMaxTokens)
	if inv.MaxUnits > 0 {
		maxTokens = int64(inv.MaxUnits)
	}

	msg, err := a.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(inv.Prompt)),
		},
	})
	if err != nil {
		return nil, a.wrapErr(err)
	}

	var text string
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			text += variant.Text
		}
	}
	if text == "" {
		return nil, kilnerrors.New(kilnerrors.CodeProviderResponseInvalid,
			"anthropic: response contained no text", kilnerrors.FieldProvider(a.id))
	}

	return &provider.Result{
		Text:        text,
		BilledUnits: msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}, nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) wrapErr(err error) error {
	var apierr *anthropicsdk.Error
	if errors.As(err, &apierr) {
		return provider.WrapStatusError(a.id, apierr.StatusCode, err)
	}
	return kilnerrors.Wrap(err, kilnerrors.CodeProviderUpstreamFailure,
		"anthropic: request failed", kilnerrors.FieldProvider(a.id))
}
