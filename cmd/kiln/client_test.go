// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kilnerr "github.com/kiln-dev/kiln/pkg/errors"
)

// testGateway serves canned JSON per path and returns its host:port address.
func testGateway(t *testing.T, routes map[string]string) string {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

// unusedAddr returns a loopback address with nothing listening on it.
func unusedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestGatewayClient_GetJSON(t *testing.T) {
	addr := testGateway(t, map[string]string{
		"/api/v1/status": `{"status":"ok","providers":2,"open_circuits":0}`,
	})

	gw := newGatewayClient(addr)
	var body struct {
		Status    string `json:"status"`
		Providers int    `json:"providers"`
	}
	require.NoError(t, gw.getJSON("/api/v1/status", &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Providers)
}

func TestGatewayClient_NotRunning(t *testing.T) {
	gw := newGatewayClient(unusedAddr(t))

	err := gw.getJSON("/api/v1/status", &struct{}{})
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeCLIGatewayNotRunning, kilnerr.CodeOf(err))
}

func TestGatewayClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	gw := newGatewayClient(strings.TrimPrefix(srv.URL, "http://"))
	err := gw.getJSON("/anything", &struct{}{})
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeCLIRequestFailure, kilnerr.CodeOf(err))
	assert.Contains(t, err.Error(), "500")
}

func TestGatewayClient_InvalidJSON(t *testing.T) {
	addr := testGateway(t, map[string]string{"/x": "not-json"})

	gw := newGatewayClient(addr)
	err := gw.getJSON("/x", &struct{}{})
	require.Error(t, err)
	assert.Equal(t, kilnerr.CodeCLIRequestFailure, kilnerr.CodeOf(err))
}
