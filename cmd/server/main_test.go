package main

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestKeygen(t *testing.T) {
	out := execute(t, "keygen")
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestSessionsListOffline(t *testing.T) {
	dir := t.TempDir()
	out := execute(t, "sessions", "list", "--offline", "--data-folder", dir, "--env", "PROD", "--log-level", "error")
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "EXPIRES")
}

func TestSessionsDelete(t *testing.T) {
	dir := t.TempDir()
	out := execute(t, "sessions", "delete", "desk", "--data-folder", dir, "--env", "PROD", "--log-level", "error")
	assert.Contains(t, out, "Deleted session desk")
}

func TestUnknownStoreType(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"sessions", "list", "--offline", "--store", "postgres", "--data-folder", t.TempDir()})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store type")
}
