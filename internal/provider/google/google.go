// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package google adapts the Gemini API to the provider.Adapter interface.
// Text descriptors use GenerateContent; image descriptors use the Imagen
// GenerateImages API.
package google

import (
	"context"
	"encoding/base64"
	"errors"

	"google.golang.org/genai"

	"github.com/kiln-dev/kiln/internal/provider"
	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
	"github.com/kiln-dev/kiln/pkg/types"
)

// Config holds Google adapter configuration.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, useful for testing against a
	// mock server.
	BaseURL string
}

// Compile-time interface check.
var _ provider.Adapter = (*Adapter)(nil)

// Adapter implements provider.Adapter for one Google descriptor.
type Adapter struct {
	id       string
	modality types.Modality
	model    string
	client   *genai.Client
}

// New creates a Google adapter for the given descriptor identity.
func New(ctx context.Context, id string, modality types.Modality, cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, kilnerrors.New(kilnerrors.CodeProviderRequestInvalid,
			"google: missing api key", kilnerrors.FieldProvider(id))
	}
	if cfg.Model == "" {
		return nil, kilnerrors.New(kilnerrors.CodeProviderRequestInvalid,
			"google: missing model", kilnerrors.FieldProvider(id))
	}
	if !modality.Valid() {
		return nil, kilnerrors.Errorf(kilnerrors.CodeProviderRequestInvalid,
			"google: unsupported modality %q", modality)
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, kilnerrors.Wrap(err, kilnerrors.CodeProviderUpstreamFailure,
			"google: creating client", kilnerrors.FieldProvider(id))
	}

	return &Adapter{id: id, modality: modality, model: cfg.Model, client: client}, nil
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) Invoke(ctx context.Context, inv provider.Invocation) (*provider.Result, error) {
	switch a.modality {
	case types.ModalityText:
		return a.generateText(ctx, inv)
	case types.ModalityImage:
		return a.generateImages(ctx, inv)
	default:
		return nil, kilnerrors.Errorf(kilnerrors.CodeProviderRequestInvalid,
			"google: unsupported modality %q", a.modality)
	}
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) generateText(ctx context.Context, inv provider.Invocation) (*provider.Result, error) {
	var cfg *genai.GenerateContentConfig
	if inv.MaxUnits > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(inv.MaxUnits)}
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(inv.Prompt), cfg)
	if err != nil {
		return nil, a.wrapErr(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, kilnerrors.New(kilnerrors.CodeProviderResponseInvalid,
			"google: response contained no text", kilnerrors.FieldProvider(a.id))
	}

	var billed int64
	if resp.UsageMetadata != nil {
		billed = int64(resp.UsageMetadata.TotalTokenCount)
	}

	return &provider.Result{Text: text, BilledUnits: billed}, nil
}

func (a *Adapter) generateImages(ctx context.Context, inv provider.Invocation) (*provider.Result, error) {
	n := int32(1)
	if inv.MaxUnits > 0 {
		n = int32(inv.MaxUnits)
	}

	resp, err := a.client.Models.GenerateImages(ctx, a.model, inv.Prompt,
		&genai.GenerateImagesConfig{NumberOfImages: n})
	if err != nil {
		return nil, a.wrapErr(err)
	}
	if len(resp.GeneratedImages) == 0 {
		return nil, kilnerrors.New(kilnerrors.CodeProviderResponseInvalid,
			"google: response contained no images", kilnerrors.FieldProvider(a.id))
	}

	images := make([]string, 0, len(resp.GeneratedImages))
	for _, img := range resp.GeneratedImages {
		if img.Image == nil {
			continue
		}
		images = append(images, base64.StdEncoding.EncodeToString(img.Image.ImageBytes))
	}

	return &provider.Result{
		Images:      images,
		BilledUnits: int64(len(images)),
	}, nil
}

func (a *Adapter) wrapErr(err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return provider.WrapStatusError(a.id, apierr.Code, err)
	}
	return kilnerrors.Wrap(err, kilnerrors.CodeProviderUpstreamFailure,
		"google: request failed", kilnerrors.FieldProvider(a.id))
}
