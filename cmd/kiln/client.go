// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// defaultGatewayAddr matches the server.listen config default.
const defaultGatewayAddr = "127.0.0.1:8780"

// defaultHTTPClient is the package-level HTTP client used by gateway
// commands. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// gatewayClient provides HTTP access to a running kiln gateway.
type gatewayClient struct {
	baseURL string
	http    *http.Client
}

// newGatewayClient creates a client targeting the given host:port address.
func newGatewayClient(addr string) *gatewayClient {
	return &gatewayClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *gatewayClient) getJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return kilnerr.Errorf(kilnerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// postJSON performs a POST request with an empty body and decodes the JSON
// response into dest.
func (c *gatewayClient) postJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return kilnerr.Errorf(kilnerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// deleteJSON performs a DELETE request and decodes the JSON response into dest.
func (c *gatewayClient) deleteJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return kilnerr.Errorf(kilnerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

func (c *gatewayClient) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return kilnerr.New(kilnerr.CodeCLIGatewayNotRunning,
				"gateway is not running (connection refused)")
		}
		return kilnerr.Errorf(kilnerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return kilnerr.Errorf(kilnerr.CodeCLIRequestFailure,
			"gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return kilnerr.Errorf(kilnerr.CodeCLIRequestFailure, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
