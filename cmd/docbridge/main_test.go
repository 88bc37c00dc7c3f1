package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "mesh.lua")
	require.NoError(t, os.WriteFile(script, []byte(`Session.addItem("Mesh", { type = "Group" })`), 0o644))

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docbridge version")

	out, err = execute(t, "--dir", dir, "docs", "init", "scene")
	require.NoError(t, err)
	assert.Contains(t, out, "scene (revision 0, 0 items)")

	_, err = execute(t, "--dir", dir, "run", "scene", script)
	require.NoError(t, err)

	out, err = execute(t, "--dir", dir, "inspect", "scene", "Mesh", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Mesh"`)

	out, err = execute(t, "--dir", dir, "docs", "ls")
	require.NoError(t, err)
	assert.Equal(t, "scene\n", out)

	out, err = execute(t, "--dir", dir, "validate", script)
	require.NoError(t, err)
	assert.Contains(t, out, "mesh.lua")

	_, err = execute(t, "--dir", dir, "inspect", "scene", "Missing", "--json=false")
	assert.ErrorContains(t, err, "not found")
}
