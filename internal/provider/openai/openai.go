// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package openai adapts the OpenAI API to the provider.Adapter interface.
// Text descriptors use the Chat Completions API; image descriptors use the
// Images API with base64 responses.
package openai

import (
	"context"
	"errors"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/kiln-dev/kiln/internal/provider"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// Config holds OpenAI adapter configuration.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, useful for testing against a
	// mock server.
	BaseURL string
}

// Compile-time interface check.
var _ provider.Adapter = (*Adapter)(nil)

// Adapter implements provider.Adapter for one OpenAI descriptor.
type Adapter struct {
	id       string
	modality types.Modality
	model    string
	client   openaisdk.Client
}

// New creates an OpenAI adapter for the given descriptor identity.
func New(id string, modality types.Modality, cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, kilnerrors.New(kilnerrors.CodeProviderRequestInvalid,
			"openai: missing api key", kilnerrors.FieldProvider(id))
	}
	if cfg.Model == "" {
		return nil, kilnerrors.New(kilnerrors.CodeProviderRequestInvalid,
			"openai: missing model", kilnerrors.FieldProvider(id))
	}
	if !modality.Valid() {
		return nil, kilnerrors.Errorf(kilnerrors.CodeProviderRequestInvalid,
			"openai: unsupported modality %q", modality)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		id:       id,
		modality: modality,
		model:    cfg.Model,
		client:   openaisdk.NewClient(opts...),
	}, nil
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) Invoke(ctx context.Context, inv provider.Invocation) (*provider.Result, error) {
	switch a.modality {
	case types.ModalityText:
		return a.complete(ctx, inv)
	case types.ModalityImage:
		return a.generate(ctx, inv)
	default:
		return nil, kilnerrors.Errorf(kilnerrors.CodeProviderRequestInvalid,
			"openai: unsupported modality %q", a.modality)
	}
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) complete(ctx context.Context, inv provider.Invocation) (*provider.Result, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(inv.Prompt),
		},
	}
	if inv.MaxUnits > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(inv.MaxUnits))
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, kilnerrors.New(kilnerrors.CodeProviderResponseInvalid,
			"openai: response contained no choices", kilnerrors.FieldProvider(a.id))
	}

	return &provider.Result{
		Text:        resp.Choices[0].Message.Content,
		BilledUnits: resp.Usage.TotalTokens,
	}, nil
}

func (a *Adapter) generate(ctx context.Context, inv provider.Invocation) (*provider.Result, error) {
	n := int64(1)
	if inv.MaxUnits > 0 {
		n = int64(inv.MaxUnits)
	}

	params := openaisdk.ImageGenerateParams{
		Prompt:         inv.Prompt,
		Model:          openaisdk.ImageModel(a.model),
		N:              param.NewOpt(n),
		ResponseFormat: openaisdk.ImageGenerateParamsResponseFormatB64JSON,
	}
	if inv.Size != "" {
		params.Size = openaisdk.ImageGenerateParamsSize(inv.Size)
	}

	resp, err := a.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, a.wrapErr(err)
	}
	if len(resp.Data) == 0 {
		return nil, kilnerrors.New(kilnerrors.CodeProviderResponseInvalid,
			"openai: response contained no images", kilnerrors.FieldProvider(a.id))
	}

	images := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		images = append(images, d.B64JSON)
	}

	return &provider.Result{
		Images:      images,
		BilledUnits: int64(len(images)),
	}, nil
}

func (a *Adapter) wrapErr(err error) error {
	var apierr *openaisdk.Error
	if errors.As(err, &apierr) {
		return provider.WrapStatusError(a.id, apierr.StatusCode, err)
	}
	return kilnerrors.Wrap(err, kilnerrors.CodeProviderUpstreamFailure,
		"openai: request failed", kilnerrors.FieldProvider(a.id))
}
