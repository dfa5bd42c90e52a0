// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args against an isolated HOME
// and a fresh global viper, capturing combined output.
func executeCommand(t *testing.T, in io.Reader, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	if in != nil {
		root.SetIn(in)
	}
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"init", "serve", "status", "health", "metrics", "estimate", "secret", "doctor", "version"}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}

	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := NewRootCmd()

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kiln")
	assert.Contains(t, out, version)
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, err := executeCommand(t, nil, "no-such-command")
	require.Error(t, err)
}

func TestRootCmd_ExplicitMissingConfig(t *testing.T) {
	_, err := executeCommand(t, nil, "--config", "/nonexistent/kiln.yaml", "version")
	require.Error(t, err)
}
